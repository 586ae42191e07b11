package endpoints

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptlab/internal/api"
	"github.com/jackzampolin/promptlab/internal/lab"
	"github.com/jackzampolin/promptlab/internal/storage"
	"github.com/jackzampolin/promptlab/internal/svcctx"
)

// PromptsResponse contains saved prompts, newest first.
type PromptsResponse struct {
	Prompts []storage.Record `json:"prompts"`
	Total   int              `json:"total"`
}

// DeletePromptResponse reports a delete.
type DeletePromptResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// ExportPromptRequest is the optional body for an export.
type ExportPromptRequest struct {
	Filename string `json:"filename,omitempty"`
}

// ExportPromptResponse contains the written file path.
type ExportPromptResponse struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// SavePromptEndpoint handles POST /api/prompts.
type SavePromptEndpoint struct{}

func (e *SavePromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/prompts", e.handler
}

func (e *SavePromptEndpoint) RequiresInit() bool { return true }

func (e *SavePromptEndpoint) Group() string { return "prompts" }

// handler godoc
//
//	@Summary		Save a prompt
//	@Description	Save an edited variant as a record; an existing id is overwritten
//	@Tags			prompts
//	@Accept			json
//	@Produce		json
//	@Param			request	body		lab.SaveRequest	true	"Prompt form"
//	@Success		201		{object}	lab.SaveResult
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/prompts [post]
func (e *SavePromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req lab.SaveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	res := svcctx.LabFrom(r.Context()).Save(r.Context(), req)
	if !res.OK() {
		writeError(w, http.StatusInternalServerError, res.Status)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (e *SavePromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req lab.SaveRequest
	var tags string
	var weight float64
	var slider int
	cmd := &cobra.Command{
		Use:   "save <prompt>",
		Short: "Save a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Prompt = strings.Join(args, " ")
			req.Tags = storage.ParseTags(tags)
			if cmd.Flags().Changed("lora-weight") {
				req.LoraWeight = &weight
			}
			if cmd.Flags().Changed("creativity") {
				req.SliderValue = &slider
			}

			client := api.NewClient(getServerURL())
			var resp lab.SaveResult
			if err := client.Post(cmd.Context(), "/api/prompts", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&req.ID, "id", "", "Record id to overwrite")
	cmd.Flags().StringVar(&req.Name, "name", "", "Record name (default: untitled)")
	cmd.Flags().StringVar(&req.NegativePrompt, "negative", "", "Negative prompt")
	cmd.Flags().StringVar(&req.LoraName, "lora-name", "", "LORA display name")
	cmd.Flags().StringVar(&req.LoraID, "lora-id", "", "LORA id")
	cmd.Flags().Float64Var(&weight, "lora-weight", 0, "LORA weight")
	cmd.Flags().IntVar(&slider, "creativity", 0, "Creativity level used")
	cmd.Flags().StringVar(&req.LLMInput, "idea", "", "Idea the prompt was generated from")
	cmd.Flags().StringVar(&tags, "tags", "", "Comma-separated tags")
	return cmd
}

// ListPromptsEndpoint handles GET /api/prompts.
type ListPromptsEndpoint struct{}

func (e *ListPromptsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts", e.handler
}

func (e *ListPromptsEndpoint) RequiresInit() bool { return true }

func (e *ListPromptsEndpoint) Group() string { return "prompts" }

// handler godoc
//
//	@Summary		List saved prompts
//	@Description	List saved prompts, newest first
//	@Tags			prompts
//	@Produce		json
//	@Param			limit	query		int	false	"Max results (default from settings)"
//	@Success		200		{object}	PromptsResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/prompts [get]
func (e *ListPromptsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	limit := storage.DefaultListLimit
	if cm := svcctx.ConfigManagerFrom(r.Context()); cm != nil && cm.Get().Defaults.ListLimit > 0 {
		limit = cm.Get().Defaults.ListLimit
	}
	limit, err := intParam(r.URL.Query(), "limit", limit, 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records := svcctx.StoreFrom(r.Context()).ListPrompts(r.Context(), limit)
	writeJSON(w, http.StatusOK, PromptsResponse{Prompts: records, Total: len(records)})
}

func (e *ListPromptsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/prompts"
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}
			client := api.NewClient(getServerURL())
			var resp PromptsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results")
	return cmd
}

// GetPromptEndpoint handles GET /api/prompts/{id}.
type GetPromptEndpoint struct{}

func (e *GetPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts/{id}", e.handler
}

func (e *GetPromptEndpoint) RequiresInit() bool { return true }

func (e *GetPromptEndpoint) Group() string { return "prompts" }

// handler godoc
//
//	@Summary		Get a saved prompt
//	@Tags			prompts
//	@Produce		json
//	@Param			id	path		string	true	"Record id"
//	@Success		200	{object}	storage.Record
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/prompts/{id} [get]
func (e *GetPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	rec := svcctx.StoreFrom(r.Context()).GetPrompt(r.Context(), r.PathValue("id"))
	if rec == nil {
		writeError(w, http.StatusNotFound, "prompt not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (e *GetPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a saved prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp storage.Record
			if err := client.Get(cmd.Context(), "/api/prompts/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// DeletePromptEndpoint handles DELETE /api/prompts/{id}.
type DeletePromptEndpoint struct{}

func (e *DeletePromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/prompts/{id}", e.handler
}

func (e *DeletePromptEndpoint) RequiresInit() bool { return true }

func (e *DeletePromptEndpoint) Group() string { return "prompts" }

// handler godoc
//
//	@Summary		Delete a saved prompt
//	@Tags			prompts
//	@Produce		json
//	@Param			id	path		string	true	"Record id"
//	@Success		200	{object}	DeletePromptResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/prompts/{id} [delete]
func (e *DeletePromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !svcctx.StoreFrom(r.Context()).DeletePrompt(r.Context(), id) {
		writeError(w, http.StatusNotFound, "prompt not found")
		return
	}
	writeJSON(w, http.StatusOK, DeletePromptResponse{ID: id, Deleted: true})
}

func (e *DeletePromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DeletePromptResponse
			if err := client.Delete(cmd.Context(), "/api/prompts/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ExportPromptEndpoint handles POST /api/prompts/{id}/export.
type ExportPromptEndpoint struct{}

func (e *ExportPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/prompts/{id}/export", e.handler
}

func (e *ExportPromptEndpoint) RequiresInit() bool { return true }

func (e *ExportPromptEndpoint) Group() string { return "prompts" }

// handler godoc
//
//	@Summary		Export a saved prompt
//	@Description	Write the record as indented JSON into the outputs directory
//	@Tags			prompts
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Record id"
//	@Param			request	body		ExportPromptRequest	false	"Target file name"
//	@Success		200		{object}	ExportPromptResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/prompts/{id}/export [post]
func (e *ExportPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ExportPromptRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	id := r.PathValue("id")
	path, err := svcctx.StoreFrom(r.Context()).ExportPromptJSON(r.Context(), id, req.Filename)
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Error("export failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	if path == "" {
		writeError(w, http.StatusNotFound, "prompt not found")
		return
	}
	writeJSON(w, http.StatusOK, ExportPromptResponse{ID: id, Path: path})
}

func (e *ExportPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var filename string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a saved prompt to the outputs directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ExportPromptResponse
			path := "/api/prompts/" + url.PathEscape(args[0]) + "/export"
			if err := client.Post(cmd.Context(), path, ExportPromptRequest{Filename: filename}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&filename, "filename", "", "File name (default: <id>.json)")
	return cmd
}
