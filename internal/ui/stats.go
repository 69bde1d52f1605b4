package ui

import "sync/atomic"

type Stats struct {
	TotalIssues  atomic.Int64
	TotalPages   atomic.Int64
	TotalBytes   atomic.Int64
	TotalSkipped atomic.Int64
	TotalFailed  atomic.Int64
}
