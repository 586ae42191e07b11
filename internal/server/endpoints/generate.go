package endpoints

import (
	"context"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptlab/internal/api"
	"github.com/jackzampolin/promptlab/internal/expand"
	"github.com/jackzampolin/promptlab/internal/lab"
	"github.com/jackzampolin/promptlab/internal/svcctx"
)

const defaultCreativity = 5

// IdeaRequest is the request body for generate and expand. A missing
// creativity uses the configured default.
type IdeaRequest struct {
	Idea       string `json:"idea"`
	Creativity *int   `json:"creativity,omitempty"`
	Variants   int    `json:"variants,omitempty"`
	NoFallback bool   `json:"no_fallback,omitempty"`
}

func (req IdeaRequest) creativity(ctx context.Context) int {
	if req.Creativity != nil {
		return *req.Creativity
	}
	if cm := svcctx.ConfigManagerFrom(ctx); cm != nil {
		return cm.Get().Defaults.Creativity
	}
	return defaultCreativity
}

// GenerateEndpoint handles POST /api/generate.
type GenerateEndpoint struct{}

func (e *GenerateEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/generate", e.handler
}

func (e *GenerateEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Generate prompt variants
//	@Description	Expand an idea into variants and inject the selected LORA token.
//	@Description	Failures are reported in status with a 200; the variant list is then empty.
//	@Tags			generate
//	@Accept			json
//	@Produce		json
//	@Param			request	body		IdeaRequest	true	"Idea and creativity"
//	@Success		200		{object}	lab.GenerateResult
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/generate [post]
func (e *GenerateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req IdeaRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	svc := svcctx.LabFrom(r.Context())
	res := svc.Generate(r.Context(), lab.GenerateRequest{
		Idea:       req.Idea,
		Creativity: req.creativity(r.Context()),
		Variants:   req.Variants,
		NoFallback: req.NoFallback,
	})
	writeJSON(w, http.StatusOK, res)
}

func (e *GenerateEndpoint) Command(getServerURL func() string) *cobra.Command {
	var creativity, variants int
	var noFallback bool
	cmd := &cobra.Command{
		Use:   "generate <idea>",
		Short: "Expand an idea into prompt variants with a LORA token",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := IdeaRequest{
				Idea:       strings.Join(args, " "),
				Variants:   variants,
				NoFallback: noFallback,
			}
			if cmd.Flags().Changed("creativity") {
				req.Creativity = &creativity
			}

			client := api.NewClient(getServerURL())
			var resp lab.GenerateResult
			if err := client.Post(cmd.Context(), "/api/generate", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVarP(&creativity, "creativity", "c", defaultCreativity, "Creativity level 0-10")
	cmd.Flags().IntVarP(&variants, "variants", "n", 0, "Number of variants (default: server setting)")
	cmd.Flags().BoolVar(&noFallback, "no-fallback", false, "Skip the LLM fallback when no tags match")
	return cmd
}

// ExpandResponse is the raw outcome of an expansion, before LORA selection.
type ExpandResponse struct {
	Variants    []expand.Variant `json:"variants"`
	Temperature float64          `json:"temperature"`
	ErrorKind   string           `json:"error_kind,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// ExpandEndpoint handles POST /api/expand.
type ExpandEndpoint struct{}

func (e *ExpandEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/expand", e.handler
}

func (e *ExpandEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Expand an idea
//	@Description	Expand an idea into variants without selecting a LORA
//	@Tags			generate
//	@Accept			json
//	@Produce		json
//	@Param			request	body		IdeaRequest	true	"Idea and creativity"
//	@Success		200		{object}	ExpandResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/expand [post]
func (e *ExpandEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req IdeaRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	adapter := svcctx.LabFrom(r.Context()).Adapter()
	creativity := lab.ClampCreativity(req.creativity(r.Context()))
	res := adapter.Expand(r.Context(), req.Idea, creativity, req.Variants)

	resp := ExpandResponse{Variants: res.Variants, Temperature: res.Temperature}
	if !res.OK() {
		resp.ErrorKind = string(res.Err.Kind)
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ExpandEndpoint) Command(getServerURL func() string) *cobra.Command {
	var creativity, variants int
	cmd := &cobra.Command{
		Use:   "expand <idea>",
		Short: "Expand an idea into prompt variants",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := IdeaRequest{Idea: strings.Join(args, " "), Variants: variants}
			if cmd.Flags().Changed("creativity") {
				req.Creativity = &creativity
			}

			client := api.NewClient(getServerURL())
			var resp ExpandResponse
			if err := client.Post(cmd.Context(), "/api/expand", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVarP(&creativity, "creativity", "c", defaultCreativity, "Creativity level 0-10")
	cmd.Flags().IntVarP(&variants, "variants", "n", 0, "Number of variants (default: server setting)")
	return cmd
}
