package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ManagerConfig конфигурация менеджера сессий.
type ManagerConfig struct {
	// DefaultModel модель, с которой стартует новая сессия.
	DefaultModel string
	// TTL сколько сессия живёт без активности. 0 отключает истечение.
	TTL time.Duration
	// Now и NewID подменяются в тестах.
	Now   func() time.Time
	NewID func() string
}

// Manager потокобезопасный реестр сессий с ленивой очисткой по TTL.
// Каждая сессия изолирована, общий мьютекс защищает только карту.
type Manager struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	defaultModel string
	ttl          time.Duration
	now          func() time.Time
	newID        func() string
}

func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		sessions:     make(map[string]*Session),
		defaultModel: cfg.DefaultModel,
		ttl:          cfg.TTL,
		now:          cfg.Now,
		newID:        cfg.NewID,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	return m
}

// GetOrCreate возвращает живую сессию по id или создаёт новую с пустой историей
// и моделью по умолчанию. Пустой, неизвестный или истёкший id даёт новую сессию
// с новым идентификатором. Второй результат true, если сессия создана сейчас.
func (m *Manager) GetOrCreate(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if s, ok := m.lookupLocked(id); ok {
			s.touch()
			return s, false
		}
	}

	s := newSession(m.newID(), m.defaultModel, m.now)
	m.sessions[s.id] = s
	return s, true
}

// GetOrCreateWithID то же, что GetOrCreate, но новая сессия получает заданный id.
// Используется там, где ключ задаёт внешний канал (например, chat_id Telegram).
func (m *Manager) GetOrCreateWithID(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.lookupLocked(id); ok {
		s.touch()
		return s, false
	}

	s := newSession(id, m.defaultModel, m.now)
	m.sessions[id] = s
	return s, true
}

// Get возвращает сессию без создания.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookupLocked(id)
}

// Delete завершает сессию.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len количество сессий в реестре, включая ещё не вычищенные истёкшие.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ClearExpired удаляет сессии, простаивающие дольше TTL относительно now.
// Сессии с запросом в полёте не трогаем. Возвращает количество удалённых.
func (m *Manager) ClearExpired(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			deleted++
		}
	}
	return deleted
}

func (m *Manager) lookupLocked(id string) (*Session, bool) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if m.expired(s, m.now()) {
		delete(m.sessions, id)
		return nil, false
	}
	return s, true
}

func (m *Manager) expired(s *Session, now time.Time) bool {
	if m.ttl <= 0 || s.InFlight() {
		return false
	}
	return now.Sub(s.idleSince()) > m.ttl
}
