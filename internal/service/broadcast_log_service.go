package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/bark-labs/offerbot/internal/model"
	"github.com/bark-labs/offerbot/internal/storage"
)

// BroadcastLogService provides filtering and statistics over past broadcasts.
type BroadcastLogService struct {
	store storage.Store
}

// NewBroadcastLogService builds the broadcast log service.
func NewBroadcastLogService(store storage.Store) *BroadcastLogService {
	return &BroadcastLogService{store: store}
}

// Query returns one page of logs, newest first.
func (s *BroadcastLogService) Query(ctx context.Context, filter model.BroadcastLogFilter) (*model.BroadcastLogPage, error) {
	logs, err := s.filteredLogs(ctx, filter)
	if err != nil {
		return nil, err
	}

	total := len(logs)
	if filter.PageSize <= 0 {
		filter.PageSize = 10
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	start := min((filter.Page-1)*filter.PageSize, total)
	end := min(start+filter.PageSize, total)

	return &model.BroadcastLogPage{
		Data:     logs[start:end],
		Total:    total,
		Pages:    (total + filter.PageSize - 1) / filter.PageSize,
		PageNum:  filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// Recent returns up to n of the latest logs.
func (s *BroadcastLogService) Recent(ctx context.Context, n int) ([]*model.BroadcastLog, error) {
	logs, err := s.filteredLogs(ctx, model.BroadcastLogFilter{})
	if err != nil {
		return nil, err
	}
	if len(logs) > n {
		logs = logs[:n]
	}
	return logs, nil
}

// CountByDate aggregates delivered messages per day, month or year.
func (s *BroadcastLogService) CountByDate(ctx context.Context, dateType string, begin, end *time.Time) ([]map[string]any, error) {
	logs, err := s.filteredLogs(ctx, model.BroadcastLogFilter{BeginTime: begin, EndTime: end})
	if err != nil {
		return nil, err
	}

	layout := "2006-01-02"
	switch strings.ToLower(dateType) {
	case "year":
		layout = "2006"
	case "month":
		layout = "2006-01"
	}

	jobs := make(map[string]int)
	delivered := make(map[string]int)
	for _, log := range logs {
		key := log.CreatedAt.Format(layout)
		jobs[key]++
		delivered[key] += log.Delivered
	}

	result := make([]map[string]any, 0, len(jobs))
	for key, count := range jobs {
		result = append(result, map[string]any{
			"date":      key,
			"jobs":      count,
			"delivered": delivered[key],
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i]["date"].(string) < result[j]["date"].(string)
	})
	return result, nil
}

func (s *BroadcastLogService) filteredLogs(ctx context.Context, filter model.BroadcastLogFilter) ([]*model.BroadcastLog, error) {
	all, err := s.store.ListBroadcastLogs(ctx)
	if err != nil {
		return nil, err
	}
	matches := make([]*model.BroadcastLog, 0, len(all))
	for _, log := range all {
		if filter.SenderID != 0 && log.SenderID != filter.SenderID {
			continue
		}
		if filter.BeginTime != nil && log.CreatedAt.Before(filter.BeginTime.UTC()) {
			continue
		}
		if filter.EndTime != nil && log.CreatedAt.After(filter.EndTime.UTC()) {
			continue
		}
		matches = append(matches, log)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}
