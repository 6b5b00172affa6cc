// Package health tracks the reachability of the upstream services a cycle
// depends on. All state is in-memory and resets on restart.
package health

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Service manages the health state of all tracked items.
type Service struct {
	mu     sync.RWMutex
	items  map[HealthCategory]map[string]*HealthItem
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new health service.
func NewService(logger zerolog.Logger) *Service {
	s := &Service{
		items:  make(map[HealthCategory]map[string]*HealthItem),
		logger: logger.With().Str("component", "health").Logger(),
		now:    time.Now,
	}
	for _, cat := range AllCategories() {
		s.items[cat] = make(map[string]*HealthItem)
	}
	return s
}

// RegisterItem adds an item with OK status.
func (s *Service) RegisterItem(category HealthCategory, id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.items[category] == nil {
		s.items[category] = make(map[string]*HealthItem)
	}
	s.items[category][id] = &HealthItem{ID: id, Category: category, Name: name, Status: StatusOK}
}

// SetError sets an item to Error status with a message.
func (s *Service) SetError(category HealthCategory, id, message string) {
	s.setStatus(category, id, StatusError, message)
}

// SetWarning sets an item to Warning status with a message.
func (s *Service) SetWarning(category HealthCategory, id, message string) {
	s.setStatus(category, id, StatusWarning, message)
}

// ClearStatus resets an item to OK status.
func (s *Service) ClearStatus(category HealthCategory, id string) {
	s.setStatus(category, id, StatusOK, "")
}

func (s *Service) setStatus(category HealthCategory, id string, status HealthStatus, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[category][id]
	if !exists {
		s.logger.Debug().
			Str("category", string(category)).
			Str("id", id).
			Msg("Ignoring status for unregistered item")
		return
	}
	if item.Status == status && item.Message == message {
		return
	}

	oldStatus := item.Status
	item.Status = status
	item.Message = message
	if status != StatusOK {
		now := s.now()
		item.Timestamp = &now
	} else {
		item.Timestamp = nil
	}

	event := s.logger.Info()
	if status == StatusError {
		event = s.logger.Warn()
	}
	event.
		Str("name", item.Name).
		Str("oldStatus", string(oldStatus)).
		Str("newStatus", string(status)).
		Str("message", message).
		Msg("Health status changed")
}

// GetItem returns a copy of a single item, or nil.
func (s *Service) GetItem(category HealthCategory, id string) *HealthItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, exists := s.items[category][id]; exists {
		c := *item
		return &c
	}
	return nil
}

// GetSummary returns all items with per-category counts.
func (s *Service) GetSummary() *HealthSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &HealthSummary{
		Categories: make([]CategorySummary, 0, len(AllCategories())),
		Items:      make([]HealthItem, 0),
	}

	for _, cat := range AllCategories() {
		catSummary := CategorySummary{Category: cat}
		items := make([]HealthItem, 0, len(s.items[cat]))
		for _, item := range s.items[cat] {
			switch item.Status {
			case StatusOK:
				catSummary.OK++
			case StatusWarning:
				catSummary.Warning++
			case StatusError:
				catSummary.Error++
			}
			items = append(items, *item)
		}
		sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

		summary.Items = append(summary.Items, items...)
		summary.HasIssues = summary.HasIssues || catSummary.HasIssues()
		summary.Categories = append(summary.Categories, catSummary)
	}

	return summary
}

// IsHealthy returns true if the specified item is registered and OK.
func (s *Service) IsHealthy(category HealthCategory, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, exists := s.items[category][id]; exists {
		return item.Status == StatusOK
	}
	return false
}
