package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	visitorIdleTTL   = 3 * time.Minute
	operationIdleTTL = 10 * time.Minute
)

// RateLimitManager owns the per-IP limiters and evicts idle ones.
type RateLimitManager struct {
	visitors   map[string]*visitor
	visitorsMu sync.Mutex

	// operations maps operation name to per-IP limiters.
	operations   map[string]map[string]*visitor
	operationsMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRateLimitManager(ctx context.Context) *RateLimitManager {
	managerCtx, cancel := context.WithCancel(ctx)

	m := &RateLimitManager{
		visitors:   make(map[string]*visitor),
		operations: make(map[string]map[string]*visitor),
		ctx:        managerCtx,
		cancel:     cancel,
	}

	m.wg.Add(1)
	go m.cleanupLoop()

	return m
}

func newLimiter(requestsPerWindow, windowSeconds, burst int) *rate.Limiter {
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	limit := rate.Limit(float64(requestsPerWindow) / float64(windowSeconds))
	if burst < requestsPerWindow {
		burst = requestsPerWindow
	}
	return rate.NewLimiter(limit, burst)
}

// GetVisitor returns the general limiter for ip. A non-positive request
// budget disables limiting.
func (m *RateLimitManager) GetVisitor(ip string, requestsPerWindow, windowSeconds, burst int) *rate.Limiter {
	if requestsPerWindow <= 0 {
		return nil
	}

	m.visitorsMu.Lock()
	defer m.visitorsMu.Unlock()

	v, exists := m.visitors[ip]
	if !exists {
		v = &visitor{limiter: newLimiter(requestsPerWindow, windowSeconds, burst)}
		m.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// GetOperationLimiter returns the limiter for one operation and ip.
func (m *RateLimitManager) GetOperationLimiter(ip, operation string, requestsPerWindow, windowSeconds int) *rate.Limiter {
	if requestsPerWindow <= 0 || operation == "" {
		return nil
	}

	m.operationsMu.Lock()
	defer m.operationsMu.Unlock()

	limiters, ok := m.operations[operation]
	if !ok {
		limiters = make(map[string]*visitor)
		m.operations[operation] = limiters
	}
	v, exists := limiters[ip]
	if !exists {
		v = &visitor{limiter: newLimiter(requestsPerWindow, windowSeconds, requestsPerWindow)}
		limiters[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (m *RateLimitManager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cleanup(time.Now())
		}
	}
}

func (m *RateLimitManager) cleanup(now time.Time) {
	m.visitorsMu.Lock()
	for ip, v := range m.visitors {
		if now.Sub(v.lastSeen) > visitorIdleTTL {
			delete(m.visitors, ip)
		}
	}
	m.visitorsMu.Unlock()

	m.operationsMu.Lock()
	for operation, limiters := range m.operations {
		for ip, v := range limiters {
			if now.Sub(v.lastSeen) > operationIdleTTL {
				delete(limiters, ip)
			}
		}
		if len(limiters) == 0 {
			delete(m.operations, operation)
		}
	}
	m.operationsMu.Unlock()
}

// Shutdown stops the cleanup goroutine and waits for it to finish.
func (m *RateLimitManager) Shutdown() error {
	m.cancel()
	m.wg.Wait()
	return nil
}
