// Package service contains the application services that sit between the
// HTTP handlers and the persistence and job-processing layers.
package service
