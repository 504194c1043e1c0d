// Package selector реализует взвешенный случайный выбор истории по таблице
// весов категорий игрока (классическая рулетка).
package selector

import (
	"github.com/evobug-com/story-server/internal/models"
	"github.com/evobug-com/story-server/internal/random"
)

// Pick выполняет рулеточный выбор элемента. Отрицательные веса трактуются
// как ноль. Если сумма весов неположительна, выбор деградирует до
// равномерного. Возвращает false только для пустого списка.
func Pick[T any](src random.Source, items []T, weight func(T) float64) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}

	total := 0.0
	weights := make([]float64, len(items))
	for i, item := range items {
		w := weight(item)
		if w < 0 {
			w = 0
		}
		weights[i] = w
		total += w
	}

	if total <= 0 {
		return items[src.IntN(len(items))], true
	}

	cursor := src.Float64() * total
	lastPositive := 0
	for i, w := range weights {
		if w <= 0 {
			// Нулевой вес невыбираем: курсор 0 не должен отдать его.
			continue
		}
		lastPositive = i
		cursor -= w
		if cursor <= 0 {
			return items[i], true
		}
	}
	// Накопленная погрешность float64 не должна оставить курсор
	// положительным, но на всякий случай возвращаем последний элемент
	// с положительным весом.
	return items[lastPositive], true
}

// SelectStory выбирает историю из набора с учетом таблицы весов категорий.
// Вес истории = вес ее категории (1, если категории нет в таблице),
// умноженный на собственный вес истории из балансировочных метаданных.
func SelectStory(src random.Source, stories []*models.StoryDefinition, weightTable map[string]float64) (*models.StoryDefinition, bool) {
	return Pick(src, stories, func(def *models.StoryDefinition) float64 {
		categoryWeight := 1.0
		if w, ok := weightTable[def.Balancing.Category]; ok {
			categoryWeight = w
		}
		storyWeight := def.Balancing.Weight
		if storyWeight <= 0 {
			storyWeight = 1
		}
		return categoryWeight * storyWeight
	})
}
