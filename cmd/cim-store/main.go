// Command cim-store is a small CLI harness over the content service: it
// wires an in-memory object store and cache together and exposes
// store/get/search/stats as subcommands, mainly useful for local
// experimentation and smoke-testing the library end to end.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cimkit/ipldstore/pkg/cache"
	cidpkg "github.com/cimkit/ipldstore/pkg/cid"
	"github.com/cimkit/ipldstore/pkg/content"
	"github.com/cimkit/ipldstore/pkg/index"
	"github.com/cimkit/ipldstore/pkg/objectstore"
	"github.com/cimkit/ipldstore/pkg/service"
	"github.com/cimkit/ipldstore/pkg/transform"
	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
)

var log = logging.Logger("cim-store")

func buildService(ctx context.Context) (*service.ContentService, error) {
	facade, err := objectstore.New(ctx, objectstore.NewMemStore())
	if err != nil {
		return nil, fmt.Errorf("build object store facade: %w", err)
	}
	c, err := cache.New(1024, 64<<20, 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("build cache: %w", err)
	}
	storage := service.NewContentStorageService(facade, c)
	return service.New(service.DefaultConfig(), storage, index.New(), transform.NewRegistry()), nil
}

func main() {
	app := &cli.App{
		Name:  "cim-store",
		Usage: "content-addressed storage demo harness",
		Commands: []*cli.Command{
			storeDocumentCommand(),
			getCommand(),
			searchCommand(),
			statsCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Errorf("cim-store: %v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func storeDocumentCommand() *cli.Command {
	return &cli.Command{
		Name:      "store-document",
		Usage:     "store a text/markdown document and print its CID",
		ArgsUsage: "<file> <title>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return cli.Exit("expected <file> <title>", 1)
			}
			data, err := os.ReadFile(c.Args().Get(0))
			if err != nil {
				return err
			}
			svc, err := buildService(c.Context)
			if err != nil {
				return err
			}
			res, err := svc.StoreDocument(c.Context, data, content.DocumentMetadata{Title: c.Args().Get(1)}, "text")
			if err != nil {
				return err
			}
			digest, err := cidpkg.Digest(res.Cid)
			if err != nil {
				return err
			}
			fmt.Printf("cid=%s digest=%s deduplicated=%v size=%d\n", res.Cid, cidpkg.FormatDigest(digest), res.Deduplicated, res.Size)
			return nil
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "retrieve a previously stored document or image by CID",
		ArgsUsage: "<cid>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 1 {
				return cli.Exit("expected <cid>", 1)
			}
			cid, err := cidpkg.Parse(c.Args().Get(0))
			if err != nil {
				return err
			}
			svc, err := buildService(c.Context)
			if err != nil {
				return err
			}
			retrieved, err := svc.Retrieve(c.Context, cid)
			if err != nil {
				return err
			}
			raw, err := retrieved.Payload.Bytes()
			if err != nil {
				return err
			}
			fmt.Printf("cid=%s codec=%#x size=%d created_at=%s\n", cid, retrieved.Payload.CodecCode(), len(raw), retrieved.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "search indexed content by text",
		Action: func(c *cli.Context) error {
			svc, err := buildService(c.Context)
			if err != nil {
				return err
			}
			hits, err := svc.Search(index.Query{Text: c.Args().First()})
			if err != nil {
				return err
			}
			for _, h := range hits {
				fmt.Printf("%s score=%.2f type=%s\n", h.Cid, h.Score, h.ContentType)
			}
			return nil
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "print index statistics",
		Action: func(c *cli.Context) error {
			svc, err := buildService(c.Context)
			if err != nil {
				return err
			}
			stats := svc.Stats()
			fmt.Printf("documents=%d images=%d audio=%d video=%d unique_words=%d unique_tags=%d\n",
				stats.Documents, stats.Images, stats.Audio, stats.Video, stats.UniqueWords, stats.UniqueTags)
			return nil
		},
	}
}
