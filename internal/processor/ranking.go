package processor

import (
	"sort"

	"cv-match-go/internal/types"
)

// Rank 对批量分析条目原地排序并写入名次。
// 排序规则：失败条目沉底且保持原始提交顺序；成功条目按匹配分降序，
// 同分时缺失技能少者在前，仍相同则保持原始顺序。
// 排序完成后 Position 为 1 起的名次，失败条目同样占有名次。
func Rank(entries []types.BatchEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ei, ej := entries[i], entries[j]

		// 失败条目排在所有成功条目之后
		if (ei.Err == nil) != (ej.Err == nil) {
			return ei.Err == nil
		}
		if ei.Err != nil {
			return false
		}

		if ei.Result.MatchScore != ej.Result.MatchScore {
			return ei.Result.MatchScore > ej.Result.MatchScore
		}
		return len(ei.Result.MissingSkills) < len(ej.Result.MissingSkills)
	})

	for i := range entries {
		entries[i].Position = i + 1
	}
}
