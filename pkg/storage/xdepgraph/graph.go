package xdepgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
)

var (
	// ErrEmptyKey 表示 key 为空
	ErrEmptyKey = errors.New("xdepgraph: empty key")

	// ErrCircularDependency 表示添加的边会形成环（包括自环）
	ErrCircularDependency = errors.New("xdepgraph: circular dependency")

	// ErrNilDeleter 表示 Cascade 的 deleter 为 nil
	ErrNilDeleter = errors.New("xdepgraph: nil deleter")
)

// Deleter 级联失效的删除目标，xcache.Provider 满足此接口。
type Deleter interface {
	Delete(ctx context.Context, key string) (bool, error)
}

type set = map[string]struct{}

// Graph 依赖图，并发安全。
type Graph struct {
	mu         sync.RWMutex
	deps       map[string]set // key → 它依赖的 key
	dependents map[string]set // key → 依赖它的 key
	logger     xlog.Logger
}

// Option Graph 配置选项
type Option func(*Graph)

// WithLogger 设置日志记录器，默认 xlog.Default()
func WithLogger(l xlog.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// New 创建空依赖图
func New(opts ...Option) *Graph {
	g := &Graph{
		deps:       make(map[string]set),
		dependents: make(map[string]set),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	if g.logger == nil {
		g.logger = xlog.Default()
	}
	g.logger = g.logger.With(xlog.Component("xdepgraph"))
	return g
}

// AddDependency 添加边 key → dependsOn。
func (g *Graph) AddDependency(key, dependsOn string) error {
	if key == "" || dependsOn == "" {
		return ErrEmptyKey
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// key → dependsOn 成环当且仅当 dependsOn 已经（传递地）依赖 key
	if key == dependsOn || g.reachableLocked(dependsOn, key) {
		err := fmt.Errorf("%w: %s -> %s", ErrCircularDependency, key, dependsOn)
		g.logger.Warn(context.Background(), "dependency rejected",
			xlog.Key(key), slog.String("depends_on", dependsOn), xlog.Err(err))
		return err
	}
	addEdge(g.deps, key, dependsOn)
	addEdge(g.dependents, dependsOn, key)
	return nil
}

// RemoveDependency 删除边，返回边是否存在
func (g *Graph) RemoveDependency(key, dependsOn string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.deps[key][dependsOn]; !ok {
		return false
	}
	removeEdge(g.deps, key, dependsOn)
	removeEdge(g.dependents, dependsOn, key)
	return true
}

// RemoveKey 删除 key 及其所有出入边
func (g *Graph) RemoveKey(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for dep := range g.deps[key] {
		removeEdge(g.dependents, dep, key)
	}
	for d := range g.dependents[key] {
		removeEdge(g.deps, d, key)
	}
	delete(g.deps, key)
	delete(g.dependents, key)
}

// DependenciesOf 返回 key 直接依赖的 key（排序）
func (g *Graph) DependenciesOf(key string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.deps[key])
}

// DependentsOf 返回直接依赖 key 的 key（排序）
func (g *Graph) DependentsOf(key string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.dependents[key])
}

// Len 返回边数
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, s := range g.deps {
		n += len(s)
	}
	return n
}

// HasCircularDependency 报告从 key 出发沿依赖边是否能回到已在栈上的节点。
func (g *Graph) HasCircularDependency(key string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(set)
	onStack := make(set)
	var visit func(k string) bool
	visit = func(k string) bool {
		if _, ok := onStack[k]; ok {
			return true
		}
		if _, ok := visited[k]; ok {
			return false
		}
		visited[k] = struct{}{}
		onStack[k] = struct{}{}
		for dep := range g.deps[k] {
			if visit(dep) {
				return true
			}
		}
		delete(onStack, k)
		return false
	}
	return visit(key)
}

// InvalidationOrder 返回 keys 及其所有传递依赖者，按依赖先于依赖者的顺序排列。
//
// 对结果集合按依赖边做后序 DFS，同层按 key 排序以保证结果稳定。
func (g *Graph) InvalidationOrder(keys ...string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	affected := make(set)
	queue := slices.Clone(keys)
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if _, ok := affected[k]; ok || k == "" {
			continue
		}
		affected[k] = struct{}{}
		for d := range g.dependents[k] {
			queue = append(queue, d)
		}
	}

	order := make([]string, 0, len(affected))
	visited := make(set, len(affected))
	var visit func(k string)
	visit = func(k string) {
		if _, ok := visited[k]; ok {
			return
		}
		visited[k] = struct{}{}
		for _, dep := range sortedKeys(g.deps[k]) {
			if _, ok := affected[dep]; ok {
				visit(dep)
			}
		}
		order = append(order, k)
	}
	for _, k := range sortedKeys(affected) {
		visit(k)
	}
	return order
}

// Cascade 按 InvalidationOrder 删除 keys 及其所有传递依赖者，返回实际删除的条目数。
//
// 单个 key 删除失败不会中断级联，所有错误合并返回。
func (g *Graph) Cascade(ctx context.Context, d Deleter, keys ...string) (int, error) {
	if d == nil {
		return 0, ErrNilDeleter
	}
	order := g.InvalidationOrder(keys...)
	removed := 0
	var errs []error
	for _, key := range order {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ok, err := d.Delete(ctx, key)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		if ok {
			removed++
		}
	}
	g.logger.Debug(ctx, "cascade invalidation",
		xlog.Count(int64(removed)), slog.Int("affected", len(order)))
	return removed, errors.Join(errs...)
}

// reachableLocked 报告沿依赖边能否从 from 到达 to
func (g *Graph) reachableLocked(from, to string) bool {
	visited := make(set)
	stack := []string{from}
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if k == to {
			return true
		}
		if _, ok := visited[k]; ok {
			continue
		}
		visited[k] = struct{}{}
		for dep := range g.deps[k] {
			stack = append(stack, dep)
		}
	}
	return false
}

func addEdge(m map[string]set, from, to string) {
	s, ok := m[from]
	if !ok {
		s = make(set)
		m[from] = s
	}
	s[to] = struct{}{}
}

func removeEdge(m map[string]set, from, to string) {
	s, ok := m[from]
	if !ok {
		return
	}
	delete(s, to)
	if len(s) == 0 {
		delete(m, from)
	}
}

func sortedKeys(s set) []string {
	if len(s) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(s))
}
