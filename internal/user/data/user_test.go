package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reefs-ai/reefs-backend/internal/pkg/database"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/user/biz"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewSQLiteMemory(logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(&UserPO{}))
	return db
}

func TestProfileRepo(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Conn(ctx).Create(&UserPO{
		ID: "u1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", TermsAccepted: true,
	}).Error)

	repo := NewProfileRepo(db)

	p, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.FirstName)
	assert.True(t, p.TermsAccepted)
	assert.Nil(t, p.FactorySuccessMessage)

	last := "Byron"
	yes := true
	require.NoError(t, repo.Update(ctx, "u1", &biz.ProfileUpdate{LastName: &last, MarketingAccepted: &yes}))
	p, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, "Byron", p.LastName)
	assert.True(t, p.MarketingAccepted)

	at := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetFactorySuccess(ctx, "u1", "built", at))
	p, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p.FactorySuccessMessage)
	assert.Equal(t, "built", *p.FactorySuccessMessage)
	require.NotNil(t, p.LastUpdated)
	assert.True(t, at.Equal(*p.LastUpdated))

	_, err = repo.Get(ctx, "nobody")
	assert.ErrorIs(t, err, biz.ErrUserNotFound)
	assert.ErrorIs(t, repo.SetFactorySuccess(ctx, "nobody", "x", at), biz.ErrUserNotFound)
}
