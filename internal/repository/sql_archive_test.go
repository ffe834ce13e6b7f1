package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"oneinbox/internal/domain"
)

var (
	_ Archive = (*Client)(nil)
	_ Archive = (*SQLArchive)(nil)
)

func newSQLArchive(t *testing.T) *SQLArchive {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every pooled connection to :memory: opens a separate database.
	sqlDB.SetMaxOpenConns(1)
	a, err := NewSQLArchive(db)
	require.NoError(t, err)
	return a
}

func turnN(n int, ticket string) domain.ArchivedTurn {
	turn := testTurn
	turn.Inbound.ID = fmt.Sprintf("in-%d", n)
	turn.Inbound.Seq = int64(2*n - 1)
	turn.Inbound.Text = fmt.Sprintf("mensaje %d", n)
	turn.Reply.ID = fmt.Sprintf("out-%d", n)
	turn.Reply.Seq = int64(2 * n)
	turn.Reply.ReplyTo = turn.Inbound.ID
	turn.Ticket = ticket
	return turn
}

func TestNewSQLArchive_NilDB(t *testing.T) {
	_, err := NewSQLArchive(nil)
	require.ErrorContains(t, err, "must not be nil")
}

func TestSQLArchive_SaveAndHistory(t *testing.T) {
	a := newSQLArchive(t)
	ctx := context.Background()

	require.NoError(t, a.SaveTurn(ctx, testTurn))

	msgs, err := a.GetHistory(ctx, "whatsapp:ana", 10)
	require.NoError(t, err)
	require.Equal(t, []domain.Message{testTurn.Inbound, testTurn.Reply}, msgs)

	turns, err := a.GetTurnCount(ctx, "whatsapp:ana")
	require.NoError(t, err)
	require.Equal(t, 1, turns)
}

func TestSQLArchive_HistoryKeepsMostRecent(t *testing.T) {
	a := newSQLArchive(t)
	ctx := context.Background()
	for n := 1; n <= 3; n++ {
		require.NoError(t, a.SaveTurn(ctx, turnN(n, "")))
	}

	msgs, err := a.GetHistory(ctx, "whatsapp:ana", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, []string{"out-2", "in-3", "out-3"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})

	turns, err := a.GetTurnCount(ctx, "whatsapp:ana")
	require.NoError(t, err)
	require.Equal(t, 3, turns)
}

func TestSQLArchive_TicketSurvivesTicketlessTurns(t *testing.T) {
	a := newSQLArchive(t)
	ctx := context.Background()
	require.NoError(t, a.SaveTurn(ctx, turnN(1, "")))
	require.NoError(t, a.SaveTurn(ctx, turnN(2, "OIB-10001")))
	require.NoError(t, a.SaveTurn(ctx, turnN(3, "")))

	var meta threadMeta
	require.NoError(t, a.db.First(&meta, "thread_id = ?", "whatsapp:ana").Error)
	require.Equal(t, "OIB-10001", meta.Ticket)
	require.Equal(t, 3, meta.Turns)
}

func TestSQLArchive_DuplicateMessageRollsBack(t *testing.T) {
	a := newSQLArchive(t)
	ctx := context.Background()
	require.NoError(t, a.SaveTurn(ctx, testTurn))

	err := a.SaveTurn(ctx, testTurn)
	require.ErrorContains(t, err, "SaveTurn")

	turns, err := a.GetTurnCount(ctx, "whatsapp:ana")
	require.NoError(t, err)
	require.Equal(t, 1, turns)
}

func TestSQLArchive_Validation(t *testing.T) {
	a := newSQLArchive(t)
	turn := testTurn
	turn.Reply.ID = ""
	require.ErrorContains(t, a.SaveTurn(context.Background(), turn), "required")

	turn = testTurn
	turn.Reply.ThreadID = "facebook:ana"
	require.ErrorContains(t, a.SaveTurn(context.Background(), turn), "another thread")
}

func TestSQLArchive_UnknownThread(t *testing.T) {
	a := newSQLArchive(t)
	msgs, err := a.GetHistory(context.Background(), "whatsapp:nadie", 0)
	require.NoError(t, err)
	require.Empty(t, msgs)

	turns, err := a.GetTurnCount(context.Background(), "whatsapp:nadie")
	require.NoError(t, err)
	require.Zero(t, turns)
}

func TestOpenSQLite_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	a, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, a.SaveTurn(context.Background(), testTurn))
	require.NoError(t, a.Close())

	a, err = OpenSQLite(path)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	turns, err := a.GetTurnCount(context.Background(), "whatsapp:ana")
	require.NoError(t, err)
	require.Equal(t, 1, turns)
}
