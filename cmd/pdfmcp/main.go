// Command pdfmcp is an MCP (Model Context Protocol) server that lets AI
// assistants read, search, and manipulate PDF documents.
//
// # Installation
//
//	go install github.com/lvillar/pdfmcp/cmd/pdfmcp@latest
//
// # Configuration for Claude Desktop
//
// Add to ~/.config/claude/claude_desktop_config.json:
//
//	{
//	  "mcpServers": {
//	    "pdfmcp": {
//	      "command": "pdfmcp",
//	      "args": ["--resource-dir", "/home/me/Documents"]
//	    }
//	  }
//	}
//
// # Available Tools
//
//   - extract_text: Layout-aware text extraction (paragraphs, columns, watermark filtering)
//   - extract_metadata, extract_outline, get_page_info: Document structure
//   - search: Full-text search with context
//   - extract_annotations, extract_links: Page annotations
//   - extract_form_fields, fill_form, flatten_form: AcroForm handling
//   - split_pdf, merge_pdfs, rotate_pages, compress_pdf: Page operations
//   - protect_pdf, unprotect_pdf: RC4 password protection
//   - add_watermark, add_page_numbers: Page stamping
//   - convert_page_to_image: Page rasterization (PNG/JPEG)
//   - list_pdfs: Discover PDFs in resource directories and the cache
//
// # Available Resources
//
//   - pdf://text?path=... : Extract text content
//   - pdf://metadata?path=... : Get document metadata
//   - pdf://pages?path=... : Get page information
//   - pdf://form-fields?path=... : List form fields
//   - pdf://cache : List cached documents
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lvillar/pdfmcp"
	"github.com/lvillar/pdfmcp/mcp"
)

func main() {
	app := &cli.App{
		Name:  "pdfmcp",
		Usage: "MCP server exposing PDF reading and manipulation over stdio",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "YAML configuration file",
			},
			&cli.StringSliceFlag{
				Name:  "resource-dir",
				Usage: "directory PDFs may be read from and written to (repeatable; unset allows all paths)",
			},
			&cli.BoolFlag{
				Name:  "allow-private-urls",
				Usage: "permit fetching PDFs from private and loopback addresses",
			},
			&cli.Int64Flag{
				Name:  "max-download-bytes",
				Usage: "size cap for PDFs fetched over HTTP",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "pdfmcp: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}

	server := mcp.NewServer()
	mcp.NewToolset(cfg).Register(server)
	return server.Run()
}

// buildConfig loads the optional config file and applies flag overrides on
// top of it.
func buildConfig(c *cli.Context) (pdfmcp.Config, error) {
	cfg := pdfmcp.NewConfig()
	if path := c.String("config"); path != "" {
		loaded, err := pdfmcp.LoadConfig(path)
		if err != nil {
			return pdfmcp.Config{}, err
		}
		cfg = loaded
	}

	if dirs := c.StringSlice("resource-dir"); len(dirs) > 0 {
		cfg.ResourceDirs = append(cfg.ResourceDirs, dirs...)
	}
	if c.IsSet("allow-private-urls") {
		cfg.AllowPrivateURLs = c.Bool("allow-private-urls")
	}
	if c.IsSet("max-download-bytes") {
		cfg.MaxDownloadBytes = c.Int64("max-download-bytes")
	}
	return cfg, nil
}
