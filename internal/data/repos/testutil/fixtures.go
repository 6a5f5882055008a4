package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/missionengine/internal/domain/missions"
)

func SeedTemplate(tb testing.TB, ctx context.Context, tx *gorm.DB, slug string, targets map[string]int64) *types.MissionTemplate {
	tb.Helper()
	t := &types.MissionTemplate{
		ID:     uuid.New(),
		Slug:   slug,
		Title:  slug,
		Period: types.PeriodDaily,
	}
	if err := t.SetTargets(targets); err != nil {
		tb.Fatalf("seed template targets: %v", err)
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed template: %v", err)
	}
	return t
}

func SeedActiveMission(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, tmpl *types.MissionTemplate, periodEnd time.Time) *types.ActiveMission {
	tb.Helper()
	m := &types.ActiveMission{
		ID:          uuid.New(),
		UserID:      userID,
		TemplateID:  tmpl.ID,
		PeriodStart: periodEnd.Add(-24 * time.Hour).UTC(),
		PeriodEnd:   periodEnd.UTC(),
	}
	if err := tx.WithContext(ctx).Omit("Template").Create(m).Error; err != nil {
		tb.Fatalf("seed active mission: %v", err)
	}
	m.Template = tmpl
	return m
}

func SeedProgress(tb testing.TB, ctx context.Context, tx *gorm.DB, m *types.ActiveMission, key string, current, target int64) *types.MissionProgress {
	tb.Helper()
	p := &types.MissionProgress{
		ID:             uuid.New(),
		MissionID:      m.ID,
		UserID:         m.UserID,
		RequirementKey: key,
		CurrentValue:   current,
		TargetValue:    target,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed progress: %v", err)
	}
	return p
}

func MarkCompleted(tb testing.TB, ctx context.Context, tx *gorm.DB, m *types.ActiveMission, at time.Time) {
	tb.Helper()
	at = at.UTC()
	if err := tx.WithContext(ctx).Model(&types.ActiveMission{}).Where("id = ?", m.ID).Update("completed_at", at).Error; err != nil {
		tb.Fatalf("mark completed: %v", err)
	}
	m.CompletedAt = &at
}
