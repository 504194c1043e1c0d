// Package story содержит каталог историй: процессный реестр определений
// с проверкой сюжетного графа при регистрации. Каталог наполняется явным
// стартовым шагом из перечисленного списка авторских историй, а не
// побочными эффектами импорта.
package story

import (
	"fmt"
	"sync"

	"github.com/evobug-com/story-server/internal/models"
)

// Catalog — реестр историй по id. Безопасен для конкурентного чтения;
// запись после старта происходит только из инкрементального AI-генератора.
type Catalog struct {
	mu      sync.RWMutex
	stories map[models.StoryID]*models.StoryDefinition
}

// NewCatalog создает пустой каталог.
func NewCatalog() *Catalog {
	return &Catalog{stories: make(map[models.StoryID]*models.StoryDefinition)}
}

// Register валидирует граф и добавляет историю. Дубликат id — ошибка:
// две истории не могут делить идентификатор.
func (c *Catalog) Register(def *models.StoryDefinition) error {
	if err := Validate(def); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.stories[def.ID]; exists {
		return fmt.Errorf("%w: %q", models.ErrStoryExists, def.ID)
	}
	c.stories[def.ID] = def
	return nil
}

// Replace валидирует и заменяет существующую историю. Используется только
// инкрементальным генератором при материализации очередного слоя.
func (c *Catalog) Replace(def *models.StoryDefinition) error {
	if err := Validate(def); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.stories[def.ID]; !exists {
		return fmt.Errorf("%w: %q", models.ErrStoryNotFound, def.ID)
	}
	c.stories[def.ID] = def
	return nil
}

// Remove удаляет историю из каталога. Возвращает false для неизвестного id.
// Нужен инкрементальному генератору: персональная история выбывает из
// каталога, когда ее единственная сессия отыграна или перечеркнута.
func (c *Catalog) Remove(id models.StoryID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.stories[id]; !exists {
		return false
	}
	delete(c.stories, id)
	return true
}

// Get возвращает историю по id.
func (c *Catalog) Get(id models.StoryID) (*models.StoryDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.stories[id]
	return def, ok
}

// IDs возвращает идентификаторы всех зарегистрированных историй.
// Порядок не определен.
func (c *Catalog) IDs() []models.StoryID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]models.StoryID, 0, len(c.stories))
	for id := range c.stories {
		ids = append(ids, id)
	}
	return ids
}

// Definitions возвращает все зарегистрированные истории. Порядок не определен.
func (c *Catalog) Definitions() []*models.StoryDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defs := make([]*models.StoryDefinition, 0, len(c.stories))
	for _, def := range c.stories {
		defs = append(defs, def)
	}
	return defs
}

// Len возвращает число зарегистрированных историй.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stories)
}
