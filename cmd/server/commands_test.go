package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Moeed-ul-Hassan/pair-drop/internal/config"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/model"
)

func TestPrintItems(t *testing.T) {
	content := "hello"
	name := "notes.pdf"
	url := "https://files.example/notes.pdf"
	size := int64(2048)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)

	var buf bytes.Buffer
	printItems(&buf, []model.SharedItem{
		{ID: 2, Type: model.ItemTypeFile, FileName: &name, FileURL: &url, FileSize: &size, CreatedAt: created},
		{ID: 1, Type: model.ItemTypeText, Content: &content, CreatedAt: created},
	})

	out := buf.String()
	assert.Contains(t, out, "-- 2 item(s)")
	assert.Contains(t, out, "2026-01-02 03:04:05  file  notes.pdf (2048 bytes) https://files.example/notes.pdf")
	assert.Contains(t, out, "2026-01-02 03:04:05  text  hello")
}

func TestSetLogLevel(t *testing.T) {
	original := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(original) })

	setLogLevel("warn")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	setLogLevel("bogus")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestOpenStore_Memory(t *testing.T) {
	cfg := &config.Config{StoreDriver: config.StoreDriverMemory, SessionTTLHours: 24}

	st, err := openStore(context.Background(), cfg, true)
	require.NoError(t, err)
	defer st.Close()

	assert.NoError(t, st.pinger.Ping(context.Background()))
	session, created, err := st.sessions.CreateIfCodeFree(context.Background(), "123456")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "123456", session.Code)
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCommand()

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"serve", "migrate", "seed", "watch"})
}
