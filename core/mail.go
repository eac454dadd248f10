package core

import (
	"bytes"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

type (
	tmplCacheEntry map[string]interface{} // {ext: *Template}

	// EmailTemplates holds the parsed email templates by name (file name without ext).
	EmailTemplates struct {
		cache    map[string]tmplCacheEntry
		appName  string
		baseURL  string
		strictly bool
	}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// ParseEmailTemplates parses every `*.txt` & `*.gohtml` template under `dir` of fsys.
// Templates starting with "_" are layouts: `_base.txt` & `_base.gohtml` wrap every other template.
func ParseEmailTemplates(fsys fs.FS, dir string, conf *Config, logger Logger) *EmailTemplates {
	tmpls := &EmailTemplates{
		cache:    make(map[string]tmplCacheEntry),
		appName:  conf.AppName,
		baseURL:  conf.FrontendBaseURL,
		strictly: conf.Debug || conf.TestMode,
	}

	fps, err := fs.Glob(fsys, path.Join(dir, "*"))
	if err != nil {
		logger.Error(fmt.Sprintf("core.ParseEmailTemplates: %v", err), err)
		return tmpls
	}

	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := tmpls.cache[name]
		if !ok {
			entry = make(tmplCacheEntry)
			tmpls.cache[name] = entry
		}
		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(fsys, path.Join(dir, "_base.txt"), fp)
			if err != nil {
				logger.Error(fmt.Sprintf("core.ParseEmailTemplates(%s): %v", fp, err), err)
				continue
			}
			if tmpls.strictly {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry[ext] = tmpl
		} else {
			tmpl, err := htmltmpl.ParseFS(fsys, path.Join(dir, "_base.gohtml"), fp)
			if err != nil {
				logger.Error(fmt.Sprintf("core.ParseEmailTemplates(%s): %v", fp, err), err)
				continue
			}
			if tmpls.strictly {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry[ext] = tmpl
		}
	}
	return tmpls
}

func (t *EmailTemplates) get(name, ext string) (interface{}, bool) {
	if t == nil {
		return nil, false
	}
	entry, ok := t.cache[name]
	if !ok {
		return nil, false
	}
	tmpl, ok := entry[ext]
	return tmpl, ok
}

func (t *EmailTemplates) contextData(m *EmailMessage) ContextData {
	return ContextData{
		AppName:         t.appName,
		FrontendBaseURL: t.baseURL,
		Data:            m.TemplateData,
	}
}

func (m *EmailMessage) renderText(tmpls *EmailTemplates) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	entry, ok := tmpls.get(m.TemplateName, ".txt")
	if !ok {
		return nil
	}
	tmpl, ok := entry.(*texttmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, tmpls.contextData(m)); err != nil {
		return errors.Wrap(err, "executing text template")
	}
	m.TextContent = buff.String()
	return nil
}

func (m *EmailMessage) renderHTML(tmpls *EmailTemplates) error {
	if m.TemplateName == "" {
		return nil
	}

	entry, ok := tmpls.get(m.TemplateName, ".gohtml")
	if !ok {
		return nil
	}
	tmpl, ok := entry.(*htmltmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, tmpls.contextData(m)); err != nil {
		return errors.Wrap(err, "executing html template")
	}
	m.HTMLContent = buff.String()
	return nil
}

// Render fills TextContent & HTMLContent from BodyStr or the message's template.
func (m *EmailMessage) Render(tmpls *EmailTemplates) error {
	if err := m.renderText(tmpls); err != nil {
		return err
	}
	return m.renderHTML(tmpls)
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }
