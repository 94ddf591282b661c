// Package session хранит состояние разговора: выбранную модель и историю
// сообщений, которая сбрасывается при смене модели.
package session

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrBusy возвращается, если по сессии уже выполняется запрос к модели.
	ErrBusy = errors.New("session has a request in flight")
	// ErrStaleExchange означает, что модель сменилась после снимка и ответ устарел.
	ErrStaleExchange = errors.New("session model changed since snapshot")
)

// State наблюдаемое состояние сессии.
type State int

const (
	// Fresh история пуста.
	Fresh State = iota
	// Active в истории есть хотя бы один обмен.
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "fresh"
}

// Session история одного пользовательского контекста (вкладка браузера, чат Telegram).
// Все мутации сериализованы мьютексом, поэтому смена модели и добавление
// обмена не перемешиваются.
type Session struct {
	id string

	mu          sync.Mutex
	model       string
	history     []Message
	generation  uint64
	inFlight    bool
	createdAt   time.Time
	lastTouched time.Time

	now func() time.Time
}

func newSession(id, model string, now func() time.Time) *Session {
	t := now()
	return &Session{
		id:          id,
		model:       model,
		createdAt:   t,
		lastTouched: t,
		now:         now,
	}
}

// ID возвращает идентификатор, по которому UI находит сессию.
func (s *Session) ID() string {
	return s.id
}

// Model возвращает текущую выбранную модель.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// State возвращает Fresh для пустой истории и Active иначе.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return Fresh
	}
	return Active
}

// ChangeModel переключает модель. Если модель отличается от текущей, история
// очищается в том же критическом участке. Повторный вызов с той же моделью ничего не делает.
// Возвращает true, если произошёл сброс.
func (s *Session) ChangeModel(model string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastTouched = s.now()
	if model == s.model {
		return false
	}
	s.model = model
	s.history = nil
	s.generation++
	return true
}

// AppendExchange добавляет сообщение пользователя и ответ ассистента, строго в этом порядке.
// Пустой userText должен отсекаться вызывающей стороной до вызова.
func (s *Session) AppendExchange(userText, assistantText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(userText, assistantText)
}

// AppendExchangeAt добавляет обмен, только если с момента Snapshot модель не менялась.
func (s *Session) AppendExchangeAt(generation uint64, userText, assistantText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return ErrStaleExchange
	}
	s.appendLocked(userText, assistantText)
	return nil
}

func (s *Session) appendLocked(userText, assistantText string) {
	now := s.now()
	s.history = append(s.history,
		newMessage(RoleUser, userText, now),
		newMessage(RoleAssistant, assistantText, now),
	)
	s.lastTouched = now
}

// History возвращает копию истории в порядке добавления.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyLocked()
}

func (s *Session) historyLocked() []Message {
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// ClearHistory очищает историю, оставляя модель прежней.
// Ответы, запрошенные до очистки, после этого считаются устаревшими.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = nil
	s.generation++
	s.lastTouched = s.now()
}

// Snapshot согласованный срез состояния для построения запроса к модели.
type Snapshot struct {
	Model      string
	History    []Message
	Generation uint64
}

// Snapshot читает модель, историю и поколение одним шагом.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastTouched = s.now()
	return Snapshot{
		Model:      s.model,
		History:    s.historyLocked(),
		Generation: s.generation,
	}
}

// Begin помечает, что по сессии выполняется запрос. Второй одновременный
// вызов получает ErrBusy. release нужно вызвать ровно один раз.
func (s *Session) Begin() (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight {
		return nil, ErrBusy
	}
	s.inFlight = true

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.inFlight = false
			s.mu.Unlock()
		})
	}, nil
}

// InFlight сообщает, есть ли незавершённый запрос.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTouched
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastTouched = s.now()
	s.mu.Unlock()
}
