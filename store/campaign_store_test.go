package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignStore_Active(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewCampaignStore(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `campaigns` WHERE active = ? ORDER BY title")).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "title", "active"}).
			AddRow(1, "general-support", "General Support", true).
			AddRow(2, "school-fees", "School Fees", true))

	campaigns, err := s.Active(context.Background())
	require.NoError(t, err)
	require.Len(t, campaigns, 2)
	assert.Equal(t, "general-support", campaigns[0].Slug)
	assert.NoError(t, mock.ExpectationsWereMet())
}
