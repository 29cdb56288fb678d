package web

import (
	"html/template"

	"mdtasks/internal/index"
)

type ViewData struct {
	Title           string
	ContentTemplate string
	ContentHTML     template.HTML
	User            User
	DocPath         string
	RenderedHTML    template.HTML
	ShowHeaders     bool
	Progress        index.Progress
	Documents       []index.DocumentSummary
	OpenTasks       []index.TaskItem
}
