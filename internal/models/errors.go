package models

import "errors"

var (
	// Catalog errors
	ErrStoryNotFound = errors.New("story not found in catalog")
	ErrStoryExists   = errors.New("story with this id is already registered")
	// ErrMalformedNode — дефект авторского контента: ссылка на несуществующий
	// узел, цикл или недостижимая концовка. Ловится при регистрации.
	ErrMalformedNode = errors.New("story graph is malformed")

	// Session errors — ожидаемые, восстановимые для пользователя состояния.
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session has expired")

	// Engine errors
	ErrChoiceInvalid = errors.New("invalid choice for current node")
	// ErrNodePending — сессия дошла до еще не сгенерированного слоя
	// AI-истории; вызывающий обязан материализовать слой и продолжить.
	ErrNodePending = errors.New("story node is not materialized yet")

	// AI generation errors
	ErrGenerationFailed = errors.New("story generation failed")

	// General
	ErrInternalServer = errors.New("internal server error")
)
