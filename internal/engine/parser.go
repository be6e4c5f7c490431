package engine

import (
	"fmt"
	"regexp"

	"github.com/shaiso/skilldag/internal/domain"
)

// maxNodeIDLen — максимальная длина ID узла.
const maxNodeIDLen = 64

// nodeIDPattern — допустимые символы ID узла.
var nodeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// SkillLookup проверяет наличие skill по имени.
// nil — проверка skills не выполняется.
type SkillLookup func(name string) bool

// Validate выполняет полную валидацию JobSpec.
//
// Проверяет:
// - Наличие узлов и лимит domain.MaxNodes
// - Непустые и уникальные ID узлов
// - Наличие промпта
// - Валидность зависимостей (depends_on)
// - Отсутствие циклов (делегируется DAG)
func Validate(spec *domain.JobSpec) error {
	return ValidateWithSkills(spec, nil)
}

// ValidateWithSkills — Validate с дополнительной проверкой ссылок на skills.
func ValidateWithSkills(spec *domain.JobSpec, hasSkill SkillLookup) error {
	if spec == nil || len(spec.Nodes) == 0 {
		return ErrEmptyNodes
	}

	if len(spec.Nodes) > domain.MaxNodes {
		return fmt.Errorf("%w: got %d, max %d", ErrTooManyNodes, len(spec.Nodes), domain.MaxNodes)
	}

	nodeIDs := make(map[string]bool, len(spec.Nodes))

	for i := range spec.Nodes {
		if err := ValidateNode(&spec.Nodes[i], nodeIDs, hasSkill); err != nil {
			return err
		}
	}

	if err := validateDependencies(spec.Nodes, nodeIDs); err != nil {
		return err
	}

	// Циклы находит построение уровней
	if _, err := BuildDAG(spec); err != nil {
		return err
	}

	return nil
}

// ValidateNode валидирует один узел.
// nodeIDs — уже встреченные ID (для проверки уникальности).
func ValidateNode(node *domain.NodeDef, nodeIDs map[string]bool, hasSkill SkillLookup) error {
	if node.ID == "" {
		return NewValidationError("", "id", "node has empty ID", ErrEmptyNodeID)
	}

	if len(node.ID) > maxNodeIDLen || !nodeIDPattern.MatchString(node.ID) {
		return NewValidationError(node.ID, "id",
			fmt.Sprintf("node ID must match %s and be at most %d chars", nodeIDPattern, maxNodeIDLen), ErrInvalidNodeID)
	}

	if nodeIDs[node.ID] {
		return NewValidationError(node.ID, "id",
			fmt.Sprintf("duplicate node ID: %s", node.ID), ErrDuplicateNodeID)
	}
	nodeIDs[node.ID] = true

	if node.Prompt == "" {
		return NewValidationError(node.ID, "prompt", "node has empty prompt", ErrEmptyPrompt)
	}

	for _, dep := range node.DependsOn {
		if dep == node.ID {
			return NewValidationError(node.ID, "depends_on",
				"node depends on itself", ErrSelfDependency)
		}
	}

	if node.Skill != "" && hasSkill != nil && !hasSkill(node.Skill) {
		return NewValidationError(node.ID, "skill",
			fmt.Sprintf("unknown skill: %s", node.Skill), ErrUnknownSkill)
	}

	return nil
}

// validateDependencies проверяет, что все depends_on ссылаются на существующие узлы.
func validateDependencies(nodes []domain.NodeDef, nodeIDs map[string]bool) error {
	for i := range nodes {
		node := &nodes[i]

		for _, dep := range node.DependsOn {
			if !nodeIDs[dep] {
				return NewValidationError(node.ID, "depends_on",
					fmt.Sprintf("depends on unknown node: %s", dep), ErrMissingDependency)
			}
		}
	}

	return nil
}
