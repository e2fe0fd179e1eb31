// Command clanctl administers clans through the ClanHub API. It talks to a
// running server rather than touching the data file, so every invocation
// goes through the same validation and governance rules as the web clients.
//
// Exit codes: 0 on success (including no-op role changes), 1 on a request
// the server rejected, 2 when the server cannot be reached.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	exitOK  = 0
	exitErr = 1
	exitEnv = 2
)

const adminTokenHeader = "X-Clanhub-Admin-Token"

func main() {
	os.Exit(run(os.Args[1:]))
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: clanctl [-api URL] [-token TOKEN] <command> [args]

Commands:
  list                                list all clans
  show <clan>                         show one clan with roster and activity
  create -owner NAME -name NAME -tag TAG [-region R] [-platform P] [-description D] [-color C]
  remove <clan>                       delete a clan
  add-member <clan> <username>        add a member
  kick-member <clan> <username>       remove a member
  promote <clan> <username>           raise a member one role step
  demote <clan> <username>            lower a member one role step
  record -type TYPE -message MSG <clan>
                                      append an activity entry

The API base URL defaults to $CLANHUB_API or http://localhost:8787; the
admin token defaults to $CLANHUB_ADMIN_TOKEN.
`)
}

func run(args []string) int {
	global := flag.NewFlagSet("clanctl", flag.ContinueOnError)
	global.Usage = usage
	apiURL := global.String("api", envOr("CLANHUB_API", "http://localhost:8787"), "API base URL")
	token := global.String("token", os.Getenv("CLANHUB_ADMIN_TOKEN"), "admin token")
	if err := global.Parse(args); err != nil {
		return exitErr
	}
	rest := global.Args()
	if len(rest) == 0 {
		usage()
		return exitErr
	}

	client := &apiClient{
		base:  strings.TrimRight(*apiURL, "/"),
		token: *token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}

	command, rest := rest[0], rest[1:]
	switch command {
	case "list":
		return cmdList(client)
	case "show":
		if len(rest) != 1 {
			usage()
			return exitErr
		}
		return cmdShow(client, rest[0])
	case "create":
		return cmdCreate(client, rest)
	case "remove":
		if len(rest) != 1 {
			usage()
			return exitErr
		}
		return cmdRemove(client, rest[0])
	case "add-member":
		if len(rest) != 2 {
			usage()
			return exitErr
		}
		return cmdAddMember(client, rest[0], rest[1])
	case "kick-member":
		if len(rest) != 2 {
			usage()
			return exitErr
		}
		return cmdKickMember(client, rest[0], rest[1])
	case "promote", "demote":
		if len(rest) != 2 {
			usage()
			return exitErr
		}
		return cmdRoleChange(client, command, rest[0], rest[1])
	case "record":
		return cmdRecord(client, rest)
	default:
		fmt.Fprintf(os.Stderr, "clanctl: unknown command %q\n", command)
		usage()
		return exitErr
	}
}

func cmdList(client *apiClient) int {
	var clans []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Tag     string `json:"tag"`
		Owner   string `json:"owner"`
		Members int    `json:"members"`
		Region  string `json:"region"`
	}
	if code := client.do(http.MethodGet, "/api/clans", nil, &clans); code != exitOK {
		return code
	}
	for _, c := range clans {
		fmt.Printf("%-20s [%s]  %d members  %-12s owner=%s\n", c.Name, c.Tag, c.Members, c.Region, c.Owner)
	}
	return exitOK
}

func cmdShow(client *apiClient, ref string) int {
	var detail struct {
		Name       string `json:"name"`
		Tag        string `json:"tag"`
		Owner      string `json:"owner"`
		Region     string `json:"region"`
		Platform   string `json:"platform"`
		Founded    string `json:"founded"`
		MemberList []struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"memberList"`
		Activity []struct {
			Message string `json:"message"`
			TimeAgo string `json:"timeAgo"`
		} `json:"activity"`
	}
	if code := client.do(http.MethodGet, "/api/clans/"+url.PathEscape(ref), nil, &detail); code != exitOK {
		return code
	}
	fmt.Printf("%s [%s]  %s / %s  founded %s\n", detail.Name, detail.Tag, detail.Region, detail.Platform, detail.Founded)
	fmt.Println("Members:")
	for _, m := range detail.MemberList {
		fmt.Printf("  %-8s %s\n", m.Role, m.Username)
	}
	fmt.Println("Activity:")
	for _, a := range detail.Activity {
		fmt.Printf("  %s (%s)\n", a.Message, a.TimeAgo)
	}
	return exitOK
}

func cmdCreate(client *apiClient, args []string) int {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	owner := fs.String("owner", "", "owner username (becomes Leader)")
	name := fs.String("name", "", "clan name")
	tag := fs.String("tag", "", "clan tag")
	region := fs.String("region", "EU West", "region")
	platform := fs.String("platform", "PC", "platform")
	description := fs.String("description", "", "description")
	color := fs.String("color", "", "accent color")
	if err := fs.Parse(args); err != nil {
		return exitErr
	}
	if *owner == "" || *name == "" || *tag == "" {
		fmt.Fprintln(os.Stderr, "clanctl: create requires -owner, -name and -tag")
		return exitErr
	}

	// clan creation runs as the owner, so claim a session first
	var session struct {
		Token string `json:"token"`
	}
	if code := client.do(http.MethodPost, "/api/session/login", map[string]any{"name": *owner}, &session); code != exitOK {
		return code
	}
	client.bearer = session.Token

	var created struct {
		ID string `json:"id"`
	}
	body := map[string]any{
		"name":        *name,
		"tag":         *tag,
		"description": *description,
		"region":      *region,
		"platform":    *platform,
		"color":       *color,
	}
	if code := client.do(http.MethodPost, "/api/clans", body, &created); code != exitOK {
		return code
	}
	fmt.Printf("created clan %s\n", created.ID)
	return exitOK
}

func cmdRemove(client *apiClient, ref string) int {
	if code := client.do(http.MethodDelete, "/api/clans/"+url.PathEscape(ref), nil, nil); code != exitOK {
		return code
	}
	fmt.Printf("removed clan %s\n", ref)
	return exitOK
}

func cmdAddMember(client *apiClient, ref, username string) int {
	var result struct {
		Members int `json:"members"`
	}
	body := map[string]any{"username": username}
	if code := client.do(http.MethodPost, "/api/clans/"+url.PathEscape(ref)+"/members", body, &result); code != exitOK {
		return code
	}
	fmt.Printf("%s joined %s (%d members)\n", username, ref, result.Members)
	return exitOK
}

func cmdKickMember(client *apiClient, ref, username string) int {
	var result struct {
		Members int `json:"members"`
	}
	path := "/api/clans/" + url.PathEscape(ref) + "/members/" + url.PathEscape(username)
	if code := client.do(http.MethodDelete, path, nil, &result); code != exitOK {
		return code
	}
	fmt.Printf("%s removed from %s (%d members)\n", username, ref, result.Members)
	return exitOK
}

func cmdRoleChange(client *apiClient, action, ref, username string) int {
	var result struct {
		OldRole string `json:"oldRole"`
		NewRole string `json:"newRole"`
		Changed bool   `json:"changed"`
	}
	path := "/api/clans/" + url.PathEscape(ref) + "/members/" + url.PathEscape(username) + "/" + action
	if code := client.do(http.MethodPost, path, nil, &result); code != exitOK {
		return code
	}
	if !result.Changed {
		fmt.Printf("%s is already %s, nothing to do\n", username, result.NewRole)
		return exitOK
	}
	fmt.Printf("%s: %s -> %s\n", username, result.OldRole, result.NewRole)
	return exitOK
}

func cmdRecord(client *apiClient, args []string) int {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	kind := fs.String("type", "other", "activity type (member_joined, member_left, match_victory, tournament_win, squad_session, other)")
	message := fs.String("message", "", "activity message")
	if err := fs.Parse(args); err != nil {
		return exitErr
	}
	if fs.NArg() != 1 || *message == "" {
		fmt.Fprintln(os.Stderr, "clanctl: record requires a clan and -message")
		return exitErr
	}
	ref := fs.Arg(0)

	body := map[string]any{"type": *kind, "message": *message}
	if code := client.do(http.MethodPost, "/api/clans/"+url.PathEscape(ref)+"/activity", body, nil); code != exitOK {
		return code
	}
	fmt.Printf("recorded %s activity for %s\n", *kind, ref)
	return exitOK
}

type apiClient struct {
	base   string
	token  string
	bearer string
	http   *http.Client
}

// do performs one API call and decodes the response into out. It returns a
// process exit code: user errors come back from the server as 4xx, anything
// that keeps us from getting an answer is an environment error.
func (c *apiClient) do(method, path string, body any, out any) int {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			fmt.Fprintf(os.Stderr, "clanctl: encode request: %v\n", err)
			return exitErr
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clanctl: %v\n", err)
		return exitErr
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set(adminTokenHeader, c.token)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clanctl: cannot reach %s: %v\n", c.base, err)
		return exitEnv
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clanctl: read response: %v\n", err)
		return exitEnv
	}

	if resp.StatusCode >= 500 {
		fmt.Fprintf(os.Stderr, "clanctl: server error: %s\n", apiErrorMessage(payload))
		return exitEnv
	}
	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "clanctl: %s\n", apiErrorMessage(payload))
		return exitErr
	}

	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			fmt.Fprintf(os.Stderr, "clanctl: decode response: %v\n", err)
			return exitEnv
		}
	}
	return exitOK
}

func apiErrorMessage(payload []byte) string {
	var body struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Error != "" {
		if body.Code != "" {
			return fmt.Sprintf("%s (%s)", body.Error, body.Code)
		}
		return body.Error
	}
	return strings.TrimSpace(string(payload))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
