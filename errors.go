package doctemplar

import "errors"

// Фатальные ошибки движка. Только они доходят до вызывающего кода при рендере.
var (
	// ErrInvalidExpression — формула содержит символ вне разрешённого набора.
	ErrInvalidExpression = errors.New("invalid expression")
	// ErrUsageLimitExceeded — вставка переменной превысила бы её maxUsage.
	ErrUsageLimitExceeded = errors.New("usage limit exceeded")
)

// Ошибки редактора: действие отклонено, схема не изменилась.
var (
	ErrBlockNotFound = errors.New("block not found")
	ErrNotTable      = errors.New("block is not a table")
	ErrNotText       = errors.New("block is not a text block")
	ErrBlockLocked   = errors.New("block is locked")
	ErrLastColumn    = errors.New("cannot remove the last column")
	ErrLastRow       = errors.New("cannot remove the last row")
	ErrCellCovered   = errors.New("cell is covered by a merge region")
	ErrOutOfRange    = errors.New("index out of range")
)
