package endpoints

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptlab/internal/api"
	"github.com/jackzampolin/promptlab/internal/lora"
	"github.com/jackzampolin/promptlab/internal/svcctx"
)

// LorasResponse contains catalog entries.
type LorasResponse struct {
	Loras []lora.Descriptor `json:"loras"`
}

// SelectLoraResponse is a selection plus the token it would inject.
type SelectLoraResponse struct {
	Selection lora.Selection `json:"selection"`
	Token     string         `json:"token,omitempty"`
}

// ChooseLoraResponse is the raw outcome of the LLM choice.
type ChooseLoraResponse struct {
	SelectedLora    string  `json:"selected_lora,omitempty"`
	SuggestedWeight float64 `json:"suggested_weight,omitempty"`
	ErrorKind       string  `json:"error_kind,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// ListLorasEndpoint handles GET /api/loras.
type ListLorasEndpoint struct{}

func (e *ListLorasEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/loras", e.handler
}

func (e *ListLorasEndpoint) RequiresInit() bool { return true }

func (e *ListLorasEndpoint) Group() string { return "loras" }

// handler godoc
//
//	@Summary		List LORAs
//	@Description	List the catalog, optionally filtered to entries sharing any of the given tags
//	@Tags			loras
//	@Produce		json
//	@Param			tags	query		string	false	"Comma-separated tags"
//	@Success		200		{object}	LorasResponse
//	@Router			/api/loras [get]
func (e *ListLorasEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	catalog := svcctx.LabFrom(r.Context()).Catalog()
	if tags := r.URL.Query().Get("tags"); tags != "" {
		catalog = catalog.SearchByTags(strings.Split(tags, ","))
	}
	resp := LorasResponse{Loras: []lora.Descriptor(catalog)}
	if resp.Loras == nil {
		resp.Loras = []lora.Descriptor{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListLorasEndpoint) Command(getServerURL func() string) *cobra.Command {
	var tags string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/loras"
			if tags != "" {
				path += "?tags=" + url.QueryEscape(tags)
			}
			client := api.NewClient(getServerURL())
			var resp LorasResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&tags, "tags", "", "Comma-separated tags to filter by")
	return cmd
}

// GetLoraEndpoint handles GET /api/loras/{id}.
type GetLoraEndpoint struct{}

func (e *GetLoraEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/loras/{id}", e.handler
}

func (e *GetLoraEndpoint) RequiresInit() bool { return true }

func (e *GetLoraEndpoint) Group() string { return "loras" }

func (e *GetLoraEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	d, ok := svcctx.LabFrom(r.Context()).Catalog().Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "lora not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (e *GetLoraEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a catalog entry by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp lora.Descriptor
			if err := client.Get(cmd.Context(), "/api/loras/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// SelectLoraEndpoint handles POST /api/loras/select.
type SelectLoraEndpoint struct{}

func (e *SelectLoraEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/loras/select", e.handler
}

func (e *SelectLoraEndpoint) RequiresInit() bool { return true }

func (e *SelectLoraEndpoint) Group() string { return "loras" }

// handler godoc
//
//	@Summary		Select a LORA
//	@Description	Pick a LORA by tag overlap, falling back to the LLM when enabled
//	@Tags			loras
//	@Accept			json
//	@Produce		json
//	@Param			request	body		IdeaRequest	true	"Idea and creativity"
//	@Success		200		{object}	SelectLoraResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/loras/select [post]
func (e *SelectLoraEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req IdeaRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	svc := svcctx.LabFrom(r.Context())
	sel := svc.Select(r.Context(), req.Idea, req.creativity(r.Context()), !req.NoFallback)
	resp := SelectLoraResponse{Selection: sel}
	if sel.Matched() {
		resp.Token = lora.FormatToken(*sel.LoraID, *sel.Weight)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *SelectLoraEndpoint) Command(getServerURL func() string) *cobra.Command {
	var creativity int
	var noFallback bool
	cmd := &cobra.Command{
		Use:   "select <idea>",
		Short: "Select a LORA for an idea",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := IdeaRequest{Idea: strings.Join(args, " "), NoFallback: noFallback}
			if cmd.Flags().Changed("creativity") {
				req.Creativity = &creativity
			}
			client := api.NewClient(getServerURL())
			var resp SelectLoraResponse
			if err := client.Post(cmd.Context(), "/api/loras/select", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVarP(&creativity, "creativity", "c", defaultCreativity, "Creativity level 0-10")
	cmd.Flags().BoolVar(&noFallback, "no-fallback", false, "Skip the LLM fallback when no tags match")
	return cmd
}

// ChooseLoraEndpoint handles POST /api/loras/choose.
type ChooseLoraEndpoint struct{}

func (e *ChooseLoraEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/loras/choose", e.handler
}

func (e *ChooseLoraEndpoint) RequiresInit() bool { return true }

func (e *ChooseLoraEndpoint) Group() string { return "loras" }

// handler godoc
//
//	@Summary		Ask the LLM for a LORA
//	@Description	Ask the LLM to pick a LORA from the catalog; the id is returned unvalidated
//	@Tags			loras
//	@Accept			json
//	@Produce		json
//	@Param			request	body		IdeaRequest	true	"Idea"
//	@Success		200		{object}	ChooseLoraResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/loras/choose [post]
func (e *ChooseLoraEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req IdeaRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	svc := svcctx.LabFrom(r.Context())
	res := svc.Adapter().ChooseLoraViaLLM(r.Context(), req.Idea, svc.Catalog())
	resp := ChooseLoraResponse{SelectedLora: res.SelectedLora, SuggestedWeight: res.SuggestedWeight}
	if res.Err != nil {
		resp.ErrorKind = string(res.Err.Kind)
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ChooseLoraEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "choose <idea>",
		Short: "Ask the LLM to choose a LORA",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ChooseLoraResponse
			req := IdeaRequest{Idea: strings.Join(args, " ")}
			if err := client.Post(cmd.Context(), "/api/loras/choose", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
