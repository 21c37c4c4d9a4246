// Package worker provides background job processing for TransitGrid: the
// Pub/Sub-triggered graph rebuild and the post-rebuild cache warmup.
package worker

import (
	"sort"
	"time"
)

// WarmupTarget is a geographic region whose weather cache is warmed after a
// successful rebuild, so the first risk assessments of the day hit a warm
// cache.
type WarmupTarget struct {
	// Name is the human-readable name of the target.
	Name string

	// Points are the lat/lon coordinates to warm. Typically the major
	// stations and hubs of the region.
	Points []Point

	// Priority determines warmup order (lower = higher priority).
	Priority int
}

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// RebuildConfig holds configuration for the rebuild job.
type RebuildConfig struct {
	// Timeout bounds one full pipeline run. Default: 10 minutes.
	Timeout time.Duration

	// WarmupTargets are the regions to warm after a successful rebuild.
	// If empty, uses DefaultWarmupTargets.
	WarmupTargets []WarmupTarget

	// WarmupConcurrency is the number of concurrent warmup fetches.
	// Default: 3
	WarmupConcurrency int

	// WarmupTimeout bounds each individual warmup fetch. Default: 10s.
	WarmupTimeout time.Duration
}

// DefaultRebuildConfig returns the default rebuild configuration.
func DefaultRebuildConfig() RebuildConfig {
	return RebuildConfig{
		Timeout:           10 * time.Minute,
		WarmupTargets:     DefaultWarmupTargets(),
		WarmupConcurrency: 3,
		WarmupTimeout:     10 * time.Second,
	}
}

// DefaultWarmupTargets returns the default warmup targets for the network's
// region, focused on the Randstad hubs and the major connection points.
func DefaultWarmupTargets() []WarmupTarget {
	return []WarmupTarget{
		{
			Name:     "Amsterdam",
			Priority: 1,
			Points: []Point{
				{Lat: 52.3676, Lon: 4.9041}, // Amsterdam Centraal
				{Lat: 52.3105, Lon: 4.7683}, // Schiphol Airport
			},
		},
		{
			Name:     "Rotterdam",
			Priority: 1,
			Points: []Point{
				{Lat: 51.9244, Lon: 4.4777}, // Rotterdam Centraal
			},
		},
		{
			Name:     "Den Haag",
			Priority: 1,
			Points: []Point{
				{Lat: 52.0705, Lon: 4.3007}, // Den Haag Centraal
			},
		},
		{
			Name:     "Utrecht",
			Priority: 1,
			Points: []Point{
				{Lat: 52.0894, Lon: 5.1102}, // Utrecht Centraal
			},
		},
		{
			Name:     "Eindhoven",
			Priority: 2,
			Points: []Point{
				{Lat: 51.4416, Lon: 5.4697}, // Eindhoven Centraal
			},
		},
		{
			Name:     "Groningen",
			Priority: 2,
			Points: []Point{
				{Lat: 53.2108, Lon: 6.5643}, // Groningen
			},
		},
		{
			Name:     "Maastricht",
			Priority: 3,
			Points: []Point{
				{Lat: 50.8503, Lon: 5.7054}, // Maastricht
			},
		},
		{
			Name:     "Zwolle",
			Priority: 3,
			Points: []Point{
				{Lat: 52.5049, Lon: 6.0907}, // Zwolle
			},
		},
	}
}

// AllPoints returns all points from all targets, ordered by priority.
func (c RebuildConfig) AllPoints() []Point {
	targets := make([]WarmupTarget, len(c.WarmupTargets))
	copy(targets, c.WarmupTargets)
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Priority < targets[j].Priority
	})

	var points []Point
	for _, target := range targets {
		points = append(points, target.Points...)
	}
	return points
}
