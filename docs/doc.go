// Package docs anchors OpenAPI generation for the promptlab HTTP API.
//
//	@title			promptlab API
//	@version		0.1
//	@description	Prompt expansion, LORA selection and saved prompt management.
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http
package docs

//go:generate swag init -g ../cmd/promptlab/serve.go -o ./swagger --parseDependency --parseInternal
