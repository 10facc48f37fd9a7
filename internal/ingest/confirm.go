package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"meddoc/internal/fileutil"
	"meddoc/internal/index"
	"meddoc/internal/logging"
	"meddoc/internal/services"
	"meddoc/internal/slug"
	"meddoc/internal/taxonomy"
	"meddoc/internal/wiki"
)

// Confirm approves a draft: the file is moved into the device folder first
// and the record is persisted second. When persisting fails the file is moved
// back, so a confirmed record never points at a missing file.
func (p *Pipeline) Confirm(ctx context.Context, id int64) (*index.Record, error) {
	ctx = services.WithRecordID(ctx, id)
	logger := logging.WithContext(ctx, p.logger)

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	rec, err := p.store.GetByID(ctx, id)
	if err != nil {
		confirmsTotal.WithLabelValues("error").Inc()
		return nil, services.Wrap(services.ErrTransient, "confirm", "load", "", err)
	}
	if rec == nil {
		confirmsTotal.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("record %d: %w", id, index.ErrNotFound)
	}
	if rec.Confirmed {
		confirmsTotal.WithLabelValues("already_confirmed").Inc()
		return nil, fmt.Errorf("record %d: %w", id, index.ErrAlreadyConfirmed)
	}

	source := rec.Path
	target, inPlace, err := p.confirmTarget(rec)
	if err != nil {
		confirmsTotal.WithLabelValues("invalid_target").Inc()
		return nil, err
	}

	if !inPlace {
		target, err = fileutil.NextFreePath(target)
		if err != nil {
			confirmsTotal.WithLabelValues("move_failed").Inc()
			return nil, services.Wrap(services.ErrTransient, "confirm", "allocate target", "", err)
		}
		ctx = services.WithStage(ctx, "move")
		if err := p.mover.Move(source, target); err != nil {
			confirmsTotal.WithLabelValues("move_failed").Inc()
			if fileutil.IsStorageUnavailable(err) {
				logging.ErrorWithContext(logging.WithContext(ctx, p.logger), "watch root storage unavailable", "storage_unavailable",
					logging.String("to", target),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check that the volume holding the watch root is mounted, then approve again"),
				)
				return nil, services.Wrap(services.ErrTransient, "confirm", "move", "storage unavailable", err)
			}
			return nil, services.Wrap(services.ErrTransient, "confirm", "move", filepath.Base(source), err)
		}
	}

	ctx = services.WithStage(ctx, "persist")
	if err := p.store.ConfirmAndRelocate(ctx, id, target); err != nil {
		confirmsTotal.WithLabelValues("persist_failed").Inc()
		if inPlace {
			return nil, err
		}
		if rbErr := p.mover.Move(target, source); rbErr != nil {
			logging.ErrorWithContext(logger, "rollback move failed", "confirm_rollback_failed",
				logging.String("from", target),
				logging.String("to", source),
				logging.Error(rbErr),
				logging.String(logging.FieldErrorHint, "move the file back by hand; the record is still a draft at the old path"),
			)
			return nil, errors.Join(err, fmt.Errorf("rollback move: %w", rbErr))
		}
		return nil, err
	}

	confirmed, err := p.store.GetByID(ctx, id)
	if err != nil || confirmed == nil {
		// The transition is committed; report what we know.
		rec.Path = target
		rec.Confirmed = true
		confirmed = rec
	}
	confirmsTotal.WithLabelValues("ok").Inc()

	if err := p.store.LogEvent(ctx, index.EventConfirmed, target, "from "+source); err != nil {
		logger.Warn("audit log write failed", logging.Error(err))
	}
	p.refreshPending(ctx)
	p.bus.Publish(Confirmed{
		EventID:    uuid.NewString(),
		RecordID:   id,
		FromPath:   source,
		Path:       target,
		DeviceSlug: confirmed.DeviceSlug,
		At:         time.Now().UTC(),
	})

	if p.search != nil {
		if err := p.search.Put(*confirmed); err != nil {
			logging.WarnWithContext(logger, "search index update failed", "search_index_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "record missing from full-text search until the next rebuild"),
			)
		}
	}
	p.regenerateAsync(ctx, *confirmed)

	logger.Info("record confirmed",
		logging.String("from", source),
		logging.String("to", target),
		logging.Bool("in_place", inPlace),
		logging.String(logging.FieldEventType, "record_confirmed"),
	)
	return confirmed, nil
}

// confirmTarget computes root/<category>/<group>/<device>/<file>. A file that
// already lives under its device directory is confirmed where it is.
func (p *Pipeline) confirmTarget(rec *index.Record) (string, bool, error) {
	for _, part := range []string{rec.CategorySlug, rec.GroupSlug, rec.DeviceSlug} {
		if !slug.Valid(part) {
			return "", false, services.Wrap(services.ErrValidation, "confirm", "target", fmt.Sprintf("invalid path segment %q", part), nil)
		}
	}
	if p.alreadyPlaced(rec.Path, rec.CategorySlug, rec.GroupSlug, rec.DeviceSlug) {
		return rec.Path, true, nil
	}
	target := p.ProposedPath(rec.CategorySlug, rec.GroupSlug, rec.DeviceSlug, filepath.Base(rec.Path))
	if !fileutil.IsWithin(p.root, target) {
		return "", false, services.Wrap(services.ErrValidation, "confirm", "target", "target outside watch root", nil)
	}
	return target, false, nil
}

func (p *Pipeline) regenerateAsync(ctx context.Context, rec index.Record) {
	if p.regen == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	p.regenWG.Add(1)
	go func() {
		defer p.regenWG.Done()
		p.regenMu.Lock()
		defer p.regenMu.Unlock()

		ctx, cancel := context.WithTimeout(bg, regenerateTimeout)
		defer cancel()
		logger := logging.WithContext(ctx, p.logger)

		records, err := p.store.ListByDevice(ctx, rec.DeviceSlug)
		if err == nil {
			info := wiki.DeviceInfo{
				Vendor:     rec.Vendor,
				Model:      rec.Model,
				Category:   rec.CategorySlug,
				Group:      rec.GroupSlug,
				DeviceSlug: rec.DeviceSlug,
			}
			err = p.regen.Regenerate(ctx, rec.DeviceSlug, info, records)
		}
		if err != nil {
			logging.WarnWithContext(logger, "wiki regeneration failed", "wiki_regenerate_failed",
				logging.Device(rec.DeviceSlug),
				logging.Error(err),
				logging.String(logging.FieldImpact, "device page is stale until the next confirm"),
			)
		}
	}()
}

// Edit changes one field of a draft and republishes the updated proposal.
func (p *Pipeline) Edit(ctx context.Context, id int64, field, value string) (*index.Record, error) {
	ctx = services.WithRecordID(ctx, id)
	field = strings.ToLower(strings.TrimSpace(field))
	value = strings.TrimSpace(value)
	if !index.EditableField(field) {
		return nil, &index.FieldError{Field: field}
	}

	p.writeMu.Lock()
	rec, err := p.store.GetByID(ctx, id)
	if err != nil {
		p.writeMu.Unlock()
		return nil, services.Wrap(services.ErrTransient, "edit", "load", "", err)
	}
	if rec == nil {
		p.writeMu.Unlock()
		return nil, fmt.Errorf("record %d: %w", id, index.ErrNotFound)
	}
	if rec.Confirmed {
		p.writeMu.Unlock()
		return nil, fmt.Errorf("record %d: %w", id, index.ErrAlreadyConfirmed)
	}

	fields, err := p.editFields(rec, field, value)
	if err != nil {
		p.writeMu.Unlock()
		return nil, err
	}
	updated, err := p.store.UpdateFields(ctx, id, fields)
	if err == nil {
		if logErr := p.store.LogEvent(ctx, index.EventEdited, rec.Path, field+"="+value); logErr != nil {
			p.logger.Warn("audit log write failed", logging.Error(logErr))
		}
	}
	p.writeMu.Unlock()
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("record %d: %w", id, index.ErrNotFound)
	}

	p.bus.Publish(p.recordMessage(updated))
	logging.WithContext(ctx, p.logger).Info("draft edited",
		logging.String("field", field),
		logging.Device(updated.DeviceSlug),
		logging.String(logging.FieldEventType, "draft_edited"),
	)
	return updated, nil
}

func (p *Pipeline) editFields(rec *index.Record, field, value string) (map[string]string, error) {
	catalog := p.validator.Catalog()
	switch field {
	case index.FieldVendor, index.FieldModel:
		if slug.Normalize(value) == "" {
			return nil, services.Wrap(services.ErrValidation, "edit", field, "value must contain letters or digits", nil)
		}
	case index.FieldDocType:
		normalized := slug.Normalize(value)
		if !taxonomy.ValidDocType(normalized) {
			return nil, services.Wrap(services.ErrValidation, "edit", field, fmt.Sprintf("unknown doc type %q", value), nil)
		}
		value = normalized
	case index.FieldCategorySlug:
		normalized := slug.Normalize(value)
		if !catalog.HasCategory(normalized) {
			return nil, services.Wrap(services.ErrValidation, "edit", field, fmt.Sprintf("unknown category %q", value), nil)
		}
		fields := map[string]string{field: normalized}
		if !catalog.HasGroup(normalized, rec.GroupSlug) {
			fields[index.FieldGroupSlug] = taxonomy.OtherGroup
		}
		return fields, nil
	case index.FieldGroupSlug:
		normalized := slug.Normalize(value)
		if !catalog.HasGroup(rec.CategorySlug, normalized) {
			return nil, services.Wrap(services.ErrValidation, "edit", field, fmt.Sprintf("unknown group %s/%s", rec.CategorySlug, value), nil)
		}
		value = normalized
	}
	return map[string]string{field: value}, nil
}
