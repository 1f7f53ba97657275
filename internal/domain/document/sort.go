package document

import (
	"cmp"
	"slices"
)

// SortRecords 按 (文档名, 块序号) 排序
func SortRecords(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		if c := cmp.Compare(a.Metadata.SourceName, b.Metadata.SourceName); c != 0 {
			return c
		}
		return cmp.Compare(a.Metadata.ChunkIndex, b.Metadata.ChunkIndex)
	})
}
