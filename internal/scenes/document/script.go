package document

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/ivlev/scene2video/internal/camera"
)

// PlanScript analyses every page of the document at path and returns the
// camera script camera=auto would play for a width x height frame. The
// script can be edited and passed back as camera=<file.yaml>.
func PlanScript(ctx context.Context, path string, width, height int, pageSeconds float64, logger *slog.Logger) (*camera.Script, error) {
	if pageSeconds <= 0 {
		pageSeconds = DefaultPageSeconds
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if logger == nil {
		logger = slog.Default()
	}
	src, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	bounds := image.Rect(0, 0, width, height)
	detector := camera.NewDetector()
	planner := camera.NewPlanner(width, height)
	script := &camera.Script{
		Version: camera.ScriptVersion,
		Source:  path,
		Width:   width,
		Height:  height,
	}
	for i := 0; i < src.PageCount(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, dst, err := fitPage(src, i, bounds)
		if err != nil {
			return nil, err
		}
		regions := detectOnFrame(detector, img, dst)
		script.Pages = append(script.Pages, camera.PagePath{
			Page:      i,
			Duration:  pageSeconds,
			Keyframes: planner.Plan(regions, pageSeconds),
		})
		logger.Info(fmt.Sprintf("Страница %d: найдено блоков %d", i+1, len(regions)))
	}
	return script, nil
}
