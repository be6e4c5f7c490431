package engine

import (
	"fmt"
	"sort"

	"github.com/shaiso/skilldag/internal/domain"
)

// Node — узел в DAG.
type Node struct {
	// Def — определение узла из JobSpec.
	Def *domain.NodeDef

	// ID — идентификатор узла.
	ID string

	// Index — позиция узла во входном списке (tie-break внутри уровня).
	Index int

	// Level — длина самого длинного пути от корня до узла.
	Level int

	// DependsOn — узлы, от которых зависит этот узел (в порядке depends_on).
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// DAG — направленный ациклический граф узлов job.
type DAG struct {
	// Nodes — все узлы графа (nodeID → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без зависимостей (уровень 0), в порядке входа.
	RootNodes []*Node

	// Order — порядок выполнения: по уровню, затем по позиции во входе.
	Order []*Node
}

// BuildDAG строит DAG из JobSpec и вычисляет уровни узлов.
//
// Уровни считаются релаксацией до неподвижной точки:
// level[n] = max(level[dep] + 1). В ациклическом графе из N узлов
// самый длинный путь короче N, поэтому после N проходов уровни
// обязаны стабилизироваться; если нет — в графе есть цикл.
func BuildDAG(spec *domain.JobSpec) (*DAG, error) {
	if spec == nil || len(spec.Nodes) == 0 {
		return nil, ErrEmptyNodes
	}

	dag := &DAG{
		Nodes:     make(map[string]*Node, len(spec.Nodes)),
		RootNodes: make([]*Node, 0),
	}

	// Первый проход: создаём все узлы
	nodes := make([]*Node, 0, len(spec.Nodes))
	for i := range spec.Nodes {
		def := &spec.Nodes[i]
		if _, exists := dag.Nodes[def.ID]; exists {
			return nil, NewValidationError(def.ID, "id",
				fmt.Sprintf("duplicate node ID: %s", def.ID), ErrDuplicateNodeID)
		}

		node := &Node{
			Def:        def,
			ID:         def.ID,
			Index:      i,
			DependsOn:  make([]*Node, 0, len(def.DependsOn)),
			Dependents: make([]*Node, 0),
		}
		dag.Nodes[def.ID] = node
		nodes = append(nodes, node)
	}

	// Второй проход: связываем узлы по зависимостям
	for _, node := range nodes {
		for _, depID := range node.Def.DependsOn {
			depNode, exists := dag.Nodes[depID]
			if !exists {
				return nil, NewValidationError(node.ID, "depends_on",
					fmt.Sprintf("depends on unknown node: %s", depID), ErrMissingDependency)
			}
			dag.addEdge(depNode, node)
		}
	}

	if err := dag.computeLevels(nodes); err != nil {
		return nil, err
	}

	for _, node := range nodes {
		if len(node.DependsOn) == 0 {
			dag.RootNodes = append(dag.RootNodes, node)
		}
	}

	order := make([]*Node, len(nodes))
	copy(order, nodes)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].Level != order[j].Level {
			return order[i].Level < order[j].Level
		}
		return order[i].Index < order[j].Index
	})
	dag.Order = order

	return dag, nil
}

// addEdge добавляет ребро между узлами.
// Дубликаты в depends_on не учитываются дважды.
func (d *DAG) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return // уже связаны
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
}

// computeLevels выполняет релаксацию уровней до неподвижной точки.
func (d *DAG) computeLevels(nodes []*Node) error {
	for _, node := range nodes {
		node.Level = 0
	}

	for pass := 0; ; pass++ {
		changed := false
		for _, node := range nodes {
			for _, dep := range node.DependsOn {
				if dep.Level+1 > node.Level {
					node.Level = dep.Level + 1
					changed = true
				}
			}
		}

		if !changed {
			return nil
		}

		// N-1 меняющих проходов достаточно для любого ациклического графа
		if pass >= len(nodes)-1 {
			return ErrCyclicDependency
		}
	}
}

// GetNode возвращает узел по ID.
func (d *DAG) GetNode(id string) *Node {
	return d.Nodes[id]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// Depth возвращает количество уровней.
func (d *DAG) Depth() int {
	depth := 0
	for _, node := range d.Nodes {
		if node.Level+1 > depth {
			depth = node.Level + 1
		}
	}
	return depth
}

// Levels возвращает уровни узлов (nodeID → level).
func (d *DAG) Levels() map[string]int {
	levels := make(map[string]int, len(d.Nodes))
	for id, node := range d.Nodes {
		levels[id] = node.Level
	}
	return levels
}

// OrderIDs возвращает ID узлов в порядке выполнения.
func (d *DAG) OrderIDs() []string {
	ids := make([]string, len(d.Order))
	for i, node := range d.Order {
		ids[i] = node.ID
	}
	return ids
}

// BlockingDependency возвращает первую зависимость, из-за которой узел
// нужно пропустить (FAILED или SKIPPED), либо пустую строку.
//
// Пропуск распространяется транзитивно: пропущенный узел сам
// блокирует своих потомков.
func (d *DAG) BlockingDependency(node *Node, results map[string]*domain.NodeResult) string {
	for _, dep := range node.DependsOn {
		r, ok := results[dep.ID]
		if !ok {
			continue
		}
		if r.Status.BlocksDependents() {
			return dep.ID
		}
	}
	return ""
}

// ShouldSkip возвращает true, если узел нельзя выполнять.
func (d *DAG) ShouldSkip(node *Node, results map[string]*domain.NodeResult) bool {
	return d.BlockingDependency(node, results) != ""
}

// IsComplete проверяет, все ли узлы в финальном статусе.
func (d *DAG) IsComplete(results map[string]*domain.NodeResult) bool {
	for id := range d.Nodes {
		r, ok := results[id]
		if !ok || !r.Status.IsTerminal() {
			return false
		}
	}
	return true
}
