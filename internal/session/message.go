package session

import "time"

// Role определяет автора сообщения в истории.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid сообщает, относится ли роль к закрытому набору {user, assistant}.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message одно сообщение истории. Поля неэкспортируемые: после добавления
// сообщение не меняется, наружу уходят только копии.
type Message struct {
	role      Role
	content   string
	createdAt time.Time
}

func newMessage(role Role, content string, at time.Time) Message {
	return Message{role: role, content: content, createdAt: at}
}

func (m Message) Role() Role {
	return m.role
}

func (m Message) Content() string {
	return m.content
}

// CreatedAt время добавления в историю (только для отображения).
func (m Message) CreatedAt() time.Time {
	return m.createdAt
}
