package database

import (
	"context"
	"fmt"
)

var schema = []struct {
	name  string
	query string
}{
	{"investigations", `
		CREATE TABLE IF NOT EXISTS investigations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			kind TEXT NOT NULL,
			subject TEXT NOT NULL,
			question TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			params JSONB,
			state JSONB,
			result JSONB,
			report TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"investigation_logs", `
		CREATE TABLE IF NOT EXISTS investigation_logs (
			id SERIAL PRIMARY KEY,
			investigation_id UUID NOT NULL REFERENCES investigations(id) ON DELETE CASCADE,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		)`},
	{"conversations", `
		CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title TEXT NOT NULL DEFAULT 'New Conversation',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"messages", `
		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"idx_investigation_logs_investigation_id", "CREATE INDEX IF NOT EXISTS idx_investigation_logs_investigation_id ON investigation_logs(investigation_id)"},
	{"idx_investigations_created_at", "CREATE INDEX IF NOT EXISTS idx_investigations_created_at ON investigations(created_at DESC)"},
	{"idx_messages_conversation_id", "CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id)"},
	{"idx_conversations_updated_at", "CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC)"},
}

// InitSchema creates every table and index the server needs. It is idempotent.
func (db *PostgresDB) InitSchema(ctx context.Context) error {
	for _, s := range schema {
		if _, err := db.Pool.Exec(ctx, s.query); err != nil {
			return fmt.Errorf("failed to create %s: %w", s.name, err)
		}
	}
	return nil
}
