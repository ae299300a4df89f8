// Package runs keeps per participant attendance counts for closed rosters.
package runs

import (
	"context"
	"errors"
	"fmt"

	"github.com/tcriess/lightspeed-roster/globals"
	"github.com/tcriess/lightspeed-roster/persistence"
	"github.com/tcriess/lightspeed-roster/types"
)

// Store is the part of the persister the run counter needs.
type Store interface {
	GetRunRecord(ctx context.Context, participantID string) (*types.RunRecord, error)
	StoreRunRecord(ctx context.Context, record *types.RunRecord) error
}

// RecordAttendance counts one run for every primary participant of the roster, in the role they are listed
// under. Records are created on first use. The first failing read or write stops the update and is returned,
// records written up to that point stay written.
func RecordAttendance(ctx context.Context, store Store, roster *types.RosterSnapshot) (int, error) {
	counted := 0
	for _, role := range types.Roles {
		for _, entry := range roster.Primary(role) {
			record, err := store.GetRunRecord(ctx, entry.Participant)
			if err != nil {
				if !errors.Is(err, persistence.ErrNotFound) {
					return counted, fmt.Errorf("could not read run record of %s: %w", entry.Participant, err)
				}
				record = &types.RunRecord{ParticipantId: entry.Participant}
			}
			record.Add(role, roster.Title, roster.ScheduledAt)
			if err = store.StoreRunRecord(ctx, record); err != nil {
				return counted, fmt.Errorf("could not store run record of %s: %w", entry.Participant, err)
			}
			counted++
			globals.AppLogger.Debug("counted run", "participant", entry.Participant, "role", role, "total", record.Total)
		}
	}
	return counted, nil
}

// Increase adds one run to a participant's total without touching the role counters, f.e. for a run that was
// never tracked by a roster. A missing record is created.
func Increase(ctx context.Context, store Store, participantID string) (*types.RunRecord, error) {
	record, err := store.GetRunRecord(ctx, participantID)
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			return nil, fmt.Errorf("could not read run record of %s: %w", participantID, err)
		}
		record = &types.RunRecord{ParticipantId: participantID}
	}
	record.Total++
	if err = store.StoreRunRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("could not store run record of %s: %w", participantID, err)
	}
	return record, nil
}
