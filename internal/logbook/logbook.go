// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

// Package logbook orchestrates the dive-log lifecycle: drafting a
// pre-filled entry from extracted photo metadata, and the local-first
// create/update/delete flow.
//
// Every mutation lands in the local store before any network call.
// The remote push afterwards is best effort; when it fails the record
// simply stays queued for the replay worker.
package logbook

import (
	"context"

	"github.com/tomtom215/mergus/internal/conditions"
	"github.com/tomtom215/mergus/internal/config"
	"github.com/tomtom215/mergus/internal/logging"
	"github.com/tomtom215/mergus/internal/models"
	"github.com/tomtom215/mergus/internal/remote"
	"github.com/tomtom215/mergus/internal/sites"
	"github.com/tomtom215/mergus/internal/store"
)

// weatherFetcher, marineFetcher and geocoder let tests substitute the
// provider clients.
type weatherFetcher interface {
	Fetch(ctx context.Context, lat, lng float64, date string) conditions.Result[models.Weather]
}

type marineFetcher interface {
	Fetch(ctx context.Context, lat, lng float64, date string) conditions.Result[models.Marine]
}

type geocoder interface {
	Fetch(ctx context.Context, lat, lng float64) conditions.Result[models.ReverseGeocode]
}

// Service is the dive-log application layer.
type Service struct {
	store   *store.Store
	remote  *remote.Client
	matcher *sites.Matcher
	weather weatherFetcher
	marine  marineFetcher
	geocode geocoder
	cfg     config.SitesConfig
}

// NewService wires the logbook layer. The remote client may be nil;
// conditions fetchers may be nil individually to skip that enrichment.
func NewService(
	st *store.Store,
	rc *remote.Client,
	matcher *sites.Matcher,
	weather weatherFetcher,
	marine marineFetcher,
	geocode geocoder,
	cfg config.SitesConfig,
) *Service {
	return &Service{
		store:   st,
		remote:  rc,
		matcher: matcher,
		weather: weather,
		marine:  marine,
		geocode: geocode,
		cfg:     cfg,
	}
}

// BuildDraft turns an extraction batch summary into a pre-filled dive
// log. Site matching and condition lookups enrich the draft when they
// succeed and degrade silently when they do not; a draft is never an
// error.
func (s *Service) BuildDraft(ctx context.Context, summary models.BatchSummary) *models.DiveLog {
	draft := &models.DiveLog{
		Date:       summary.Date,
		TimeStart:  summary.TimeStart,
		TimeEnd:    summary.TimeEnd,
		DivingTime: summary.DivingTime,
	}

	if !summary.HasGPS {
		return draft
	}

	draft.Latitude = summary.Latitude
	draft.Longitude = summary.Longitude

	if s.matcher != nil {
		if match, found := s.matcher.FindNearest(summary.Latitude, summary.Longitude, s.cfg.DefaultRadiusM); found {
			draft.SiteName = match.Site.Name
			draft.Country = match.Site.Country
			draft.Region = match.Site.Region
		}
	}

	if draft.Country == "" && s.geocode != nil {
		if res := s.geocode.Fetch(ctx, summary.Latitude, summary.Longitude); res.Success {
			draft.Country = res.Data.Country
			draft.Region = res.Data.Region
			if draft.SiteName == "" && res.Data.City != "" {
				draft.SiteName = res.Data.City
			}
		} else {
			logging.Debug().Str("error", res.Error).Msg("Draft geocode lookup failed")
		}
	}

	if s.weather != nil {
		if res := s.weather.Fetch(ctx, summary.Latitude, summary.Longitude, summary.Date); res.Success {
			draft.AirTemp = res.Data.AirTemperature
			draft.Conditions = res.Data.Condition
		} else {
			logging.Debug().Str("error", res.Error).Msg("Draft weather lookup failed")
		}
	}

	if s.marine != nil {
		if res := s.marine.Fetch(ctx, summary.Latitude, summary.Longitude, summary.Date); res.Success {
			draft.WaterTemp = res.Data.SeaSurfaceTemperature
		} else {
			logging.Debug().Str("error", res.Error).Msg("Draft marine lookup failed")
		}
	}

	return draft
}

// Create persists a new dive log locally and pushes it to the backend
// when reachable.
func (s *Service) Create(ctx context.Context, log *models.DiveLog) error {
	if err := s.store.CreateLog(ctx, log); err != nil {
		return err
	}
	s.tryPush(ctx, log)
	return nil
}

// Get fetches one dive log.
func (s *Service) Get(ctx context.Context, id string) (*models.DiveLog, error) {
	return s.store.GetLog(ctx, id)
}

// List returns all dive logs, most recent first. A non-empty date
// filters to that day.
func (s *Service) List(ctx context.Context, date string) ([]*models.DiveLog, error) {
	if date != "" {
		return s.store.ListLogsByDate(ctx, date)
	}
	return s.store.ListLogs(ctx)
}

// ListUnsynced returns logs whose last mutation has not reached the
// backend.
func (s *Service) ListUnsynced(ctx context.Context) ([]*models.DiveLog, error) {
	return s.store.ListUnsynced(ctx)
}

// Update overwrites an existing dive log locally, then pushes.
func (s *Service) Update(ctx context.Context, log *models.DiveLog) error {
	if err := s.store.UpdateLog(ctx, log); err != nil {
		return err
	}
	s.tryPush(ctx, log)
	return nil
}

// Delete removes a dive log locally, then pushes the deletion.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteLog(ctx, id); err != nil {
		return err
	}
	if s.remote == nil {
		return nil
	}
	if err := s.remote.DeleteLog(ctx, id); err != nil {
		logging.Debug().Err(err).Str("log_id", id).Msg("Immediate remote delete failed; queued for replay")
		return nil
	}
	if err := s.store.MarkSynced(ctx, id); err != nil {
		logging.Warn().Err(err).Str("log_id", id).Msg("Failed to clear pending entry after remote delete")
	}
	return nil
}

// tryPush attempts an immediate remote write after a local mutation.
// Failure is not an error: the pending queue already holds the op.
func (s *Service) tryPush(ctx context.Context, log *models.DiveLog) {
	if s.remote == nil {
		return
	}
	if err := s.remote.UpsertLog(ctx, log); err != nil {
		logging.Debug().Err(err).Str("log_id", log.ID).Msg("Immediate remote push failed; queued for replay")
		return
	}
	if err := s.store.MarkSynced(ctx, log.ID); err != nil {
		logging.Warn().Err(err).Str("log_id", log.ID).Msg("Failed to mark log synced after remote push")
		return
	}
	log.IsSynced = true
}
