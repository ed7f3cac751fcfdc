package algo

import (
	"errors"
	"math"
	"time"
)

const (
	// 分支定界中每扩展多少个节点检查一次截止时间
	DEADLINE_CHECK_INTERVAL = 1024

	// 不限制搜索时间
	NO_TIME_LIMIT time.Duration = -1
)

var (
	// 不可达
	INF = math.Inf(1)
	// 无时间窗
	NO_WINDOW = math.Inf(-1)
)

var (
	// 错误：节点不存在
	ErrNodeNotFound = errors.New("node not found in search graph")
	// 错误：边权为负
	ErrNegativeWeight = errors.New("negative edge weight")
	// 错误：距离矩阵不是方阵或与时长/时间窗长度不一致
	ErrDimensionMismatch = errors.New("tour problem dimension mismatch")
)
