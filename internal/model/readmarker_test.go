package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadMarker_AdvanceTo_MaxWins(t *testing.T) {
	for _, order := range [][2]int64{{5, 9}, {9, 5}} {
		req := require.New(t)
		m := ReadMarker{}
		m.AdvanceTo(order[0])
		m.AdvanceTo(order[1])
		req.Equal(int64(9), m.Watermark)
	}
}

func TestReadMarker_AdvanceTo_ReportsMovement(t *testing.T) {
	req := require.New(t)
	m := ReadMarker{}
	req.True(m.AdvanceTo(3))
	req.False(m.AdvanceTo(3))
	req.False(m.AdvanceTo(2))
	req.Equal(int64(3), m.Watermark)
}

func TestReadMarker_Acknowledge_BelowWatermarkIsNoop(t *testing.T) {
	req := require.New(t)
	m := ReadMarker{Watermark: 10}
	req.Equal(0, m.Acknowledge(4, 10))
	req.Equal(int64(10), m.Watermark)
	req.Empty(m.Exceptions)
}

func TestReadMarker_Acknowledge_KeepsSortedUnique(t *testing.T) {
	req := require.New(t)
	m := ReadMarker{Watermark: 1}
	req.Equal(3, m.Acknowledge(9, 4, 7, 4))
	req.Equal(0, m.Acknowledge(7))
	req.Equal([]int64{4, 7, 9}, m.Exceptions)
	req.True(m.IsRead(7))
	req.False(m.IsRead(5))
	req.True(m.IsRead(1))
}

func TestReadMarker_AdvanceTo_CompactsExceptions(t *testing.T) {
	req := require.New(t)
	m := ReadMarker{Watermark: 2, Exceptions: []int64{4, 6, 8}}
	m.AdvanceTo(6)
	req.Equal([]int64{8}, m.Exceptions)
	// Поглощённые watermark'ом id остаются прочитанными.
	req.True(m.IsRead(4))
	req.True(m.IsRead(6))
	m.AdvanceTo(100)
	req.Empty(m.Exceptions)
}

func TestReadMarker_IsZero(t *testing.T) {
	req := require.New(t)
	m := ReadMarker{}
	req.True(m.IsZero())
	m.Acknowledge(3)
	req.False(m.IsZero())
}

func TestReadMarker_Clone(t *testing.T) {
	req := require.New(t)
	m := ReadMarker{Exceptions: []int64{1, 2}}
	c := m.Clone()
	c.Exceptions[0] = 42
	req.Equal(int64(1), m.Exceptions[0])
}
