package state

// SQL statements for the state store. Schema creation lives with the
// migrations in migrations.go.

const insertConversation = `
INSERT INTO conversations (
	session_id, user_input, assistant_response,
	detected_intent, processing_time, timestamp, metadata
) VALUES (?, ?, ?, ?, ?, ?, ?)`

const selectConversationHistory = `
SELECT id, session_id, user_input, assistant_response,
	detected_intent, processing_time, timestamp, metadata
FROM conversations
WHERE session_id = ?
ORDER BY timestamp DESC
LIMIT ?`

const insertSystemEvent = `
INSERT INTO system_events (
	event_type, payload, timestamp, source, correlation_id
) VALUES (?, ?, ?, ?, ?)`

const selectSystemEvents = `
SELECT id, event_type, payload, timestamp, source, correlation_id
FROM system_events
WHERE event_type = ?
ORDER BY timestamp DESC
LIMIT ?`

const insertAlert = `
INSERT INTO alerts (
	alert_type, severity, message, timestamp, resolved_at, metadata
) VALUES (?, ?, ?, ?, ?, ?)`

const deleteOldConversations = `
DELETE FROM conversations WHERE timestamp < ?`

const deleteOldEvents = `
DELETE FROM system_events WHERE timestamp < ?`
