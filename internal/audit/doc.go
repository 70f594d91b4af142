// Package audit records server operations in an append-only log.
//
// Every key sync, upload, verification and download handled by the server
// is written as one JSON object per line to the configured audit path
// (audit.path, default kaitiaki-audit.jsonl). Entries carry the caller's
// user ID, the operation name and an outcome: "ok" or the error code that
// was returned to the client.
//
// # Usage
//
//	log := audit.New(cfg.Audit.Path)
//	log.Record(audit.Entry{User: userID, Operation: audit.OpFileUpload, FileID: id})
//
// # Failure Handling
//
// Recording is best-effort. If the log cannot be written the request still
// completes. Reading tolerates malformed lines by skipping them.
package audit
