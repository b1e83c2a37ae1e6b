package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jpch89/the5fire-Django/internal/service"

	"github.com/xuri/excelize/v2"
)

// GenerateAdminExport 把列表结果写成 xlsx：第一行为列名，之后每行一条记录
func GenerateAdminExport(res *service.ListResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := res.Model
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	columns := append([]string{"id"}, res.Columns...)
	for col, name := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for rowIdx, item := range res.Items {
		row := rowIdx + 2 // 第 1 行是表头
		for col, name := range columns {
			value := item[name]
			if value == nil {
				continue
			}
			if t, ok := value.(time.Time); ok {
				value = t.Format("2006-01-02 15:04:05")
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write excel: %w", err)
	}
	return buf.Bytes(), nil
}
