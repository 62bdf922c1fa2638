package model

import (
	"slices"
	"time"
)

// ReadMarker: состояние прочтения одного пользователя в одном чате. Прочитаны все сообщения
// с id <= Watermark и все id из Exceptions. В Exceptions только id выше watermark,
// отсортированные и без повторов.
type ReadMarker struct {
	ChatID     int64     `json:"chatId"`
	UserID     int64     `json:"userId"`
	Watermark  int64     `json:"watermark"`
	Exceptions []int64   `json:"exceptions"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// IsZero: маркера ещё нет, ничего не прочитано.
func (m *ReadMarker) IsZero() bool {
	return m.Watermark == 0 && len(m.Exceptions) == 0
}

// IsRead сообщает, покрыт ли id watermark'ом или отмечен вне очереди.
func (m *ReadMarker) IsRead(id int64) bool {
	if id <= m.Watermark {
		return true
	}
	_, found := slices.BinarySearch(m.Exceptions, id)
	return found
}

// AdvanceTo поднимает watermark до id, если он выше, и выкидывает покрытые исключения.
// Возвращает false, если watermark не сдвинулся.
func (m *ReadMarker) AdvanceTo(id int64) bool {
	if id <= m.Watermark {
		return false
	}
	m.Watermark = id
	m.compact()
	return true
}

// Acknowledge отмечает id, прочитанные вне очереди; id не выше watermark игнорируются.
// Возвращает число новых отметок.
func (m *ReadMarker) Acknowledge(ids ...int64) int {
	added := 0
	for _, id := range ids {
		if id <= m.Watermark {
			continue
		}
		pos, found := slices.BinarySearch(m.Exceptions, id)
		if found {
			continue
		}
		m.Exceptions = slices.Insert(m.Exceptions, pos, id)
		added++
	}
	return added
}

func (m *ReadMarker) compact() {
	cut, _ := slices.BinarySearch(m.Exceptions, m.Watermark+1)
	if cut == 0 {
		return
	}
	m.Exceptions = slices.Clone(m.Exceptions[cut:])
}

// Clone возвращает копию без общей памяти с m.
func (m ReadMarker) Clone() ReadMarker {
	m.Exceptions = slices.Clone(m.Exceptions)
	return m
}
