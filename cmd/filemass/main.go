// Command filemass is a thin CLI wiring around the repository and
// tagbase packages. Argument parsing itself is out of scope for this
// project; this wrapper only exposes one flag per operation named in
// the external interface and prints its result.
package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/filemass/filemass/lib/hashsum"
	"github.com/filemass/filemass/lib/logging"
	"github.com/filemass/filemass/lib/repository"
	"github.com/filemass/filemass/lib/tag"
	"github.com/filemass/filemass/lib/tagparser"
	"github.com/filemass/filemass/lib/tagquery"
	"github.com/filemass/filemass/lib/tagstore"
)

func main() {
	repoPath := flag.String("repo", "", "path to a repository directory")
	tagbasePath := flag.String("tagbase", "", "path to a tagbase file")
	initRepo := flag.Bool("init-repo", false, "create the repository directory named by -repo")
	initTagbase := flag.Bool("init-tagbase", false, "create the tagbase file named by -tagbase")
	add := flag.String("add", "", "add the file at this path to -repo")
	checkHash := flag.String("check", "", "run repository_error_check on this hash within -repo")
	fixHash := flag.String("fix", "", "run repository_error_fix on this hash within -repo")
	addTags := flag.String("add-tags", "", "comma-separated file hashes to attach -tags to")
	removeTags := flag.String("remove-tags", "", "comma-separated file hashes to remove -tags from")
	tagList := flag.String("tags", "", "tag list to add or remove, per the tag-list grammar")
	tagsOf := flag.String("tags-of", "", "print the tag tree attached to this file hash")
	query := flag.String("query", "", "evaluate this tag query against -tagbase")
	flag.Parse()

	logging.InitLogger(nil)

	if err := run(*repoPath, *tagbasePath, *initRepo, *initTagbase, *add, *checkHash, *fixHash, *addTags, *removeTags, *tagList, *tagsOf, *query); err != nil {
		logging.Fatalf("filemass: %v", err)
	}
}

func run(repoPath, tagbasePath string, initRepo, initTagbase bool, add, checkHash, fixHash, addTags, removeTags, tagListText, tagsOf, query string) error {
	repo, err := openRepository(repoPath, initRepo)
	if err != nil {
		return err
	}
	store, err := openTagbase(tagbasePath, initTagbase)
	if err != nil {
		return err
	}

	switch {
	case add != "":
		return runAdd(repo, add)
	case checkHash != "":
		return runCheck(repo, checkHash)
	case fixHash != "":
		return runFix(repo, fixHash)
	case addTags != "":
		return runAddTags(store, addTags, tagListText)
	case removeTags != "":
		return runRemoveTags(store, removeTags, tagListText)
	case tagsOf != "":
		return runTagsOf(store, tagsOf)
	case query != "":
		return runQuery(store, query)
	}
	return nil
}

func openRepository(path string, init bool) (*repository.Repository, error) {
	if path == "" {
		return nil, nil
	}
	if init {
		return repository.Init(path)
	}
	return repository.Open(path)
}

func openTagbase(path string, init bool) (*tagstore.Store, error) {
	if path == "" {
		return nil, nil
	}
	if init {
		return tagstore.Init(path)
	}
	return tagstore.Open(path)
}

func runAdd(repo *repository.Repository, sourcePath string) error {
	if repo == nil {
		return fmt.Errorf("-add requires -repo")
	}
	h, wasNew, err := repo.Add(sourcePath)
	if err != nil {
		return err
	}
	logging.Infof("%s new=%t", h.Hex(), wasNew)
	return nil
}

func runCheck(repo *repository.Repository, hashHex string) error {
	if repo == nil {
		return fmt.Errorf("-check requires -repo")
	}
	h, err := hashsum.FromHex(hashHex)
	if err != nil {
		return err
	}
	status, err := repo.ErrorCheck(h)
	if err != nil {
		return err
	}
	logging.Infof("%s", status)
	return nil
}

func runFix(repo *repository.Repository, hashHex string) error {
	if repo == nil {
		return fmt.Errorf("-fix requires -repo")
	}
	h, err := hashsum.FromHex(hashHex)
	if err != nil {
		return err
	}
	result, err := repo.ErrorFix(h)
	if err != nil {
		return err
	}
	logging.Infof("%s", result)
	return nil
}

func parseFileHashes(csv string) ([]hashsum.Hash, error) {
	var out []hashsum.Hash
	for _, raw := range strings.Split(csv, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		h, err := hashsum.FromHex(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func runAddTags(store *tagstore.Store, hashesCSV, tagListText string) error {
	if store == nil {
		return fmt.Errorf("-add-tags requires -tagbase")
	}
	root, err := tagparser.ParseTagList(tagListText)
	if err != nil {
		return err
	}
	fileHashes, err := parseFileHashes(hashesCSV)
	if err != nil {
		return err
	}
	for _, fileHash := range fileHashes {
		for _, child := range root.Children {
			if err := store.AddTo(child, fileHash, fileHash); err != nil {
				return err
			}
		}
	}
	return nil
}

func runRemoveTags(store *tagstore.Store, hashesCSV, tagListText string) error {
	if store == nil {
		return fmt.Errorf("-remove-tags requires -tagbase")
	}
	root, err := tagparser.ParseTagList(tagListText)
	if err != nil {
		return err
	}
	fileHashes, err := parseFileHashes(hashesCSV)
	if err != nil {
		return err
	}
	for _, fileHash := range fileHashes {
		for _, child := range root.Children {
			if err := store.RemoveFrom(child, fileHash); err != nil {
				return err
			}
		}
	}
	return nil
}

func runTagsOf(store *tagstore.Store, hashHex string) error {
	if store == nil {
		return fmt.Errorf("-tags-of requires -tagbase")
	}
	h, err := hashsum.FromHex(hashHex)
	if err != nil {
		return err
	}
	root, err := store.FindTagsOfFile(h)
	if err != nil {
		return err
	}
	printTagTree(root, 0)
	return nil
}

func printTagTree(t *tag.Tag, depth int) {
	if t == nil {
		return
	}
	if t.Name != "" {
		fmt.Println(strings.Repeat("  ", depth) + t.Name)
	}
	for _, child := range t.Children {
		printTagTree(child, depth+1)
	}
}

func runQuery(store *tagstore.Store, queryText string) error {
	if store == nil {
		return fmt.Errorf("-query requires -tagbase")
	}
	q, err := tagparser.ParseTagQuery(queryText)
	if err != nil {
		return err
	}
	engine := tagquery.NewEngine(store)
	results, err := engine.FindIn(hashsum.Zero, q)
	if err != nil {
		return err
	}
	for _, h := range results {
		fmt.Println(h.Hex())
	}
	return nil
}
