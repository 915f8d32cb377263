package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(t *testing.T) *DBconn {
	t.Helper()

	conn, err := New(Config{
		DriverName: "sqlite3",
		ConnInfo:   filepath.Join(t.TempDir(), "results.db"),
		TableName:  "result_tab",
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Destroy() })

	return conn
}

func TestDB(t *testing.T) {
	conn := newTestConn(t)

	items := []Item{
		{RunID: "run-1", Filename: "030_1_a.jpg", FilePath: "/t/030_1_a.jpg", ActualAge: 30, ActualGender: 1, PredictedAge: 31.5, PredictedGender: 0.9, GenderLabel: 1, CreateAt: time.Now()},
		{RunID: "run-1", Filename: "045_0_a.jpg", FilePath: "/t/045_0_a.jpg", ActualAge: 45, ActualGender: 0, PredictedAge: 40, PredictedGender: 0.9, GenderLabel: 1, CreateAt: time.Now()},
		{RunID: "run-2", Filename: "050_0_a.jpg", FilePath: "/t/050_0_a.jpg", ActualAge: 50, ActualGender: 0, PredictedAge: 49, PredictedGender: 0.1, GenderLabel: 0, CreateAt: time.Now()},
	}
	for _, item := range items {
		require.NoError(t, conn.Insert(item))
	}

	got, err := conn.Get("run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "030_1_a.jpg", got[0].Filename)
	assert.Equal(t, 30, got[0].ActualAge)
	assert.InDelta(t, 31.5, got[0].PredictedAge, 1e-9)
	assert.Equal(t, 1, got[1].GenderLabel)

	deleted, err := conn.Delete("run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	got, err = conn.Get("run-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = conn.Get("run-2")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	cfg := Config{DriverName: "sqlite3", ConnInfo: path, TableName: "result_tab"}

	conn, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, conn.Insert(Item{RunID: "r", Filename: "f", FilePath: "p", CreateAt: time.Now()}))
	require.NoError(t, conn.Destroy())

	// 테이블이 이미 존재하면 재생성하지 않음
	conn, err = New(cfg)
	require.NoError(t, err)
	defer conn.Destroy()

	got, err := conn.Get("r")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
