package memory

import (
	"fmt"
	"os"

	"battle-arena/internal/domain"
	"gopkg.in/yaml.v3"
)

// Fixtures is the YAML document used to populate a bank and its accounts,
// either in memory or through the postgres seeder.
type Fixtures struct {
	Subjects  []domain.Subject  `yaml:"subjects"`
	Accounts  []domain.Account  `yaml:"accounts"`
	Questions []domain.Question `yaml:"questions"`
}

// LoadFixtures reads fixtures from a YAML file.
func LoadFixtures(path string) (Fixtures, error) {
	var fx Fixtures
	data, err := os.ReadFile(path)
	if err != nil {
		return fx, err
	}
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return fx, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	return fx, nil
}

func (fx Fixtures) Bank() *QuestionBank {
	return NewQuestionBank(fx.Subjects, fx.Questions)
}

func (fx Fixtures) Directory() *AccountDirectory {
	return NewAccountDirectory(fx.Accounts)
}
