package file

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"quiz-game-service/internal/domain"
	"quiz-game-service/internal/infra/memory"
)

// LoadQuestionBank reads a YAML document mapping category names to question lists.
func LoadQuestionBank(path string) (domain.QuestionBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseQuestionBank(data)
}

func ParseQuestionBank(data []byte) (domain.QuestionBank, error) {
	var bank domain.QuestionBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	if err := bank.Validate(); err != nil {
		return nil, err
	}
	return bank, nil
}

// NewQuestionLoader loads path once and serves it through the in-memory loader.
func NewQuestionLoader(path string) (*memory.StaticQuestionLoader, error) {
	bank, err := LoadQuestionBank(path)
	if err != nil {
		return nil, err
	}
	return memory.NewStaticQuestionLoader(bank), nil
}
