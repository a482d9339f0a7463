package models

import "time"

// LogRecord is one ingested log line.
type LogRecord struct {
	ID          int64     `json:"id"`
	Domain      string    `json:"domain"`
	IPAddress   string    `json:"ip_address"`
	ServiceName string    `json:"service_name"`
	Message     string    `json:"message"`
	Severity    string    `json:"severity"`
	Timestamp   time.Time `json:"timestamp"`
}

// LogInput carries the client-supplied fields of a LogRecord.
type LogInput struct {
	Domain      string `json:"domain"`
	IPAddress   string `json:"ip_address"`
	ServiceName string `json:"service_name"`
	Message     string `json:"message"`
	Severity    string `json:"severity"`
}
