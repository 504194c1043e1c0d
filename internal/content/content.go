// Package content содержит авторские сюжетные определения. Регистрация
// каталога — явный шаг старта сервиса, а не сайд-эффект импорта: порядок
// и состав историй виден в одном месте.
package content

import (
	"github.com/evobug-com/story-server/internal/models"
	"github.com/evobug-com/story-server/internal/random"
	"github.com/evobug-com/story-server/internal/story"
)

// All возвращает все авторские истории. Источник flavor используется
// вычисляемыми значениями (джекпоты и пр.); исходы бросает движок своим
// собственным источником.
func All(flavor random.Source) []*models.StoryDefinition {
	return []*models.StoryDefinition{
		overtimeStory(),
		casinoStory(flavor),
		partyStory(),
	}
}

// RegisterAll валидирует и регистрирует все авторские истории в каталоге.
func RegisterAll(c *story.Catalog, flavor random.Source) error {
	for _, def := range All(flavor) {
		if err := c.Register(def); err != nil {
			return err
		}
	}
	return nil
}
