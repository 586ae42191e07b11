package endpoints

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptlab/internal/api"
	"github.com/jackzampolin/promptlab/internal/prompts"
	"github.com/jackzampolin/promptlab/internal/svcctx"
)

// TemplatesResponse lists the effective request templates.
type TemplatesResponse struct {
	Templates []prompts.Prompt `json:"templates"`
}

// ListTemplatesEndpoint handles GET /api/templates.
type ListTemplatesEndpoint struct{}

func (e *ListTemplatesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/templates", e.handler
}

func (e *ListTemplatesEndpoint) RequiresInit() bool { return true }

func (e *ListTemplatesEndpoint) Group() string { return "templates" }

// handler godoc
//
//	@Summary		List request templates
//	@Description	Built-in or overridden templates used for LLM requests
//	@Tags			templates
//	@Produce		json
//	@Success		200	{object}	TemplatesResponse
//	@Router			/api/templates [get]
func (e *ListTemplatesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolver := svcctx.LabFrom(r.Context()).Adapter().Prompts()
	writeJSON(w, http.StatusOK, TemplatesResponse{Templates: resolver.All()})
}

func (e *ListTemplatesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List request templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp TemplatesResponse
			if err := client.Get(cmd.Context(), "/api/templates", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetTemplateEndpoint handles GET /api/templates/{key}.
type GetTemplateEndpoint struct{}

func (e *GetTemplateEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/templates/{key}", e.handler
}

func (e *GetTemplateEndpoint) RequiresInit() bool { return true }

func (e *GetTemplateEndpoint) Group() string { return "templates" }

// handler godoc
//
//	@Summary		Get a request template
//	@Tags			templates
//	@Produce		json
//	@Param			key	path		string	true	"Template key (expand, choose_lora)"
//	@Success		200	{object}	prompts.Prompt
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/templates/{key} [get]
func (e *GetTemplateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolver := svcctx.LabFrom(r.Context()).Adapter().Prompts()
	p, err := resolver.Resolve(r.PathValue("key"))
	if errors.Is(err, prompts.ErrUnknownKey) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (e *GetTemplateEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show one request template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var p prompts.Prompt
			if err := client.Get(cmd.Context(), "/api/templates/"+url.PathEscape(args[0]), &p); err != nil {
				return err
			}
			return api.Output(p)
		},
	}
}
