// Package ownership 把有 owner 的实体限制在创建者范围内：创建时写入 owner，查询时按 owner 过滤。
package ownership

// Owned 带 owner 的实体
type Owned interface {
	GetOwnerID() int64
	SetOwnerID(id int64)
}

// Policy 组合进各实体 handler 的 owner 策略。零值表示该实体没有 owner 概念（不过滤）。
type Policy struct {
	owned bool
}

// Owner 有 owner 的实体使用的策略
func Owner() Policy { return Policy{owned: true} }

// None 无 owner 的实体使用的策略
func None() Policy { return Policy{} }

// Stamp 创建时写入 owner，覆盖调用方传入的任何值
func (p Policy) Stamp(principalID int64, obj Owned) {
	if !p.owned {
		return
	}
	obj.SetOwnerID(principalID)
}

// Scope 返回查询必须使用的 owner 条件；0 表示不按 owner 过滤
func (p Policy) Scope(principalID int64) int64 {
	if !p.owned {
		return 0
	}
	return principalID
}

// Visible 单条记录是否对 principal 可见
func (p Policy) Visible(principalID int64, obj Owned) bool {
	return !p.owned || obj.GetOwnerID() == principalID
}

// Filter 从结果集中剔除不属于 principal 的记录。
// 存储层已按 Scope 过滤，这里保证任何来源的结果都不会泄露其他人的数据。
func Filter[T Owned](p Policy, principalID int64, items []T) []T {
	if !p.owned {
		return items
	}
	out := items[:0:0]
	for _, it := range items {
		if it.GetOwnerID() == principalID {
			out = append(out, it)
		}
	}
	return out
}
