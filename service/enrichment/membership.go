package enrichment

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/Ulo03/playbacc/models"
	"github.com/Ulo03/playbacc/util/mbdate"
)

// The metadata source reports membership dates at whatever precision it has:
// "2001", "2001-06", "2001-06-15". Later fetches may know more. Raw strings
// are kept verbatim; a candidate refines a stored stint only when its string
// is strictly longer and the stored one is a prefix of it (or vice versa,
// which means the stored value is already the more precise of the two).

// prefixCompatible reports whether two raw date strings can describe the same
// stint boundary: one is a prefix of the other, or either side is empty.
func prefixCompatible(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

// refines reports whether the candidate string carries strictly more
// precision than the stored one.
func refines(candidate, stored string) bool {
	return len(candidate) > len(stored)
}

// upsertMembershipStint applies one observed (member, group) stint:
//  1. an exact raw-date match only reconciles the ended flag;
//  2. a prefix-compatible stint is refined in place when the candidate is
//     more precise (or its ended flag changed);
//  3. otherwise the observation is a new stint (leave and rejoin are real).
func (w *Worker) upsertMembershipStint(ctx context.Context, memberID, groupID uuid.UUID, beginRaw, endRaw string, ended bool) error {
	stints, err := w.DB.ListMembershipStints(ctx, memberID, groupID)
	if err != nil {
		return err
	}

	for _, stint := range stints {
		if stint.BeginDateRaw == beginRaw && stint.EndDateRaw == endRaw {
			if stint.Ended != ended {
				stint.Ended = ended
				return w.DB.UpdateMembership(ctx, stint)
			}
			return nil
		}
	}

	for _, stint := range stints {
		if !prefixCompatible(stint.BeginDateRaw, beginRaw) || !prefixCompatible(stint.EndDateRaw, endRaw) {
			continue
		}

		changed := false
		if refines(beginRaw, stint.BeginDateRaw) {
			stint.BeginDateRaw = beginRaw
			stint.BeginDate = mbdate.Normalize(beginRaw)
			changed = true
		}
		if refines(endRaw, stint.EndDateRaw) {
			stint.EndDateRaw = endRaw
			stint.EndDate = mbdate.Normalize(endRaw)
			changed = true
		}
		if stint.Ended != ended {
			stint.Ended = ended
			changed = true
		}

		if changed {
			return w.DB.UpdateMembership(ctx, stint)
		}
		return nil
	}

	return w.DB.InsertMembership(ctx, &models.GroupMembership{
		MemberID:     memberID,
		GroupID:      groupID,
		BeginDate:    mbdate.Normalize(beginRaw),
		EndDate:      mbdate.Normalize(endRaw),
		BeginDateRaw: beginRaw,
		EndDateRaw:   endRaw,
		Ended:        ended,
	})
}
