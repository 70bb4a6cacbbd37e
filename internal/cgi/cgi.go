// Package cgi bridges drain to CGI/1.1 executables, grounded on
// original_source/src/cgi.rs's handle_cgi(). Access control is not
// duplicated here — internal/dispatch already gates every resource before
// it reaches a bridge, CGI included, in one place (see DESIGN.md).
package cgi

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fooooter/drain/internal/config"
	"github.com/fooooter/drain/internal/httpparse"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("drain.cgi")

// Status mirrors cgi.rs's CGIStatus.
type Status int

const (
	Available Status = iota
	Unavailable
)

// Result is what Execute hands back to the dispatcher for response
// assembly.
type Result struct {
	Status          Status
	ResponseStatus  int
	ResponseHeaders map[string]string
	Content         []byte
}

// Bridge executes CGI scripts under a configured interpreter.
type Bridge struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Bridge { return &Bridge{cfg: cfg} }

// Execute spawns the CGI interpreter against resource, builds its
// environment the way cgi.rs does, pipes cgiData (if any) to stdin, and
// parses the interpreter's stdout into a response.
func (b *Bridge) Execute(
	ctx context.Context,
	resource, requestMethod, queryString string,
	headers map[string]string,
	cgiData *httpparse.CGIData,
	localIP, remoteIP net.IP,
	remotePort int,
	https bool,
) (Result, error) {
	if b.cfg.CGI == nil {
		return Result{}, fmt.Errorf("cgi: no cgi configuration")
	}

	scriptFilename, scriptName, pathInfo := resolveScriptPath(b.cfg.DocumentRoot, resource)

	// A chrooted process's filesystem root already is document_root, so
	// advertising it again to the CGI script would leak the pre-chroot
	// path, matching util.rs's CHROOT-gated DOCUMENT_ROOT.
	documentRootEnv := b.cfg.DocumentRoot
	if b.cfg.ChrootActive {
		documentRootEnv = ""
	}

	env := []string{
		"GATEWAY_INTERFACE=CGI/1.1",
		"SERVER_ADDR=" + localIP.String(),
		"SERVER_NAME=" + b.cfg.BindHost,
		"SERVER_PORT=" + b.cfg.BindPort,
		"SERVER_PROTOCOL=HTTP/1.1",
		"SERVER_SOFTWARE=Drain",
		"DOCUMENT_ROOT=" + documentRootEnv,
		"REQUEST_URI=" + resource,
		"REQUEST_METHOD=" + requestMethod,
		"QUERY_STRING=" + queryString,
		"HTTPS=" + httpsFlag(https),
		"REMOTE_ADDR=" + remoteIP.String(),
		"REMOTE_PORT=" + strconv.Itoa(remotePort),
		"SCRIPT_NAME=" + scriptName,
		"SCRIPT_FILENAME=" + scriptFilename,
		"REDIRECT_STATUS=1",
		"PATH_INFO=" + pathInfo,
	}
	for k, v := range headers {
		name := "HTTP_" + strings.ToUpper(strings.ReplaceAll(k, "-", "_"))
		if name == "HTTP_CONTENT_TYPE" || name == "HTTP_CONTENT_LENGTH" {
			continue
		}
		env = append(env, name+"="+v)
	}

	var stdin []byte
	if cgiData != nil {
		stdin = cgiData.Data
		env = append(env,
			"CONTENT_TYPE="+cgiData.ContentType,
			"CONTENT_LENGTH="+strconv.Itoa(len(cgiData.Data)))
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.CGI.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.cfg.CGI.CGIServer, scriptFilename)
	cmd.Env = env
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		log.Errorf("CGI script %s timed out after %s", scriptFilename, b.cfg.CGI.Timeout)
		return Result{}, fmt.Errorf("cgi: script %s timed out", scriptFilename)
	}

	if stderr.Len() > 0 {
		if runErr != nil {
			log.Errorf("CGI script %s failed with no output: %s", scriptFilename, stderr.String())
			return Result{Status: Unavailable}, nil
		}
		log.Warningf("CGI script %s wrote to stderr: %s", scriptFilename, stderr.String())
	} else if runErr != nil {
		return Result{Status: Unavailable}, nil
	}

	return parseCGIOutput(stdout.Bytes())
}

func parseCGIOutput(out []byte) (Result, error) {
	idx := bytes.Index(out, []byte("\r\n\r\n"))
	if idx < 0 {
		return Result{}, fmt.Errorf("cgi: malformed output: no header/body separator")
	}
	headerBlock, content := out[:idx], out[idx+4:]

	responseHeaders := map[string]string{}
	for _, line := range bytes.Split(headerBlock, []byte("\r\n")) {
		name, value, ok := bytes.Cut(line, []byte(":"))
		if !ok {
			return Result{}, fmt.Errorf("cgi: malformed header line %q", line)
		}
		responseHeaders[strings.ToLower(strings.TrimSpace(string(name)))] = strings.TrimSpace(string(value))
	}

	status := 200
	if raw, ok := responseHeaders["status"]; ok {
		if len(raw) < 3 {
			return Result{}, fmt.Errorf("cgi: malformed Status header %q", raw)
		}
		parsed, err := strconv.Atoi(raw[:3])
		if err != nil {
			return Result{}, fmt.Errorf("cgi: malformed Status header %q", raw)
		}
		status = parsed
	}
	delete(responseHeaders, "status")

	if _, ok := responseHeaders["location"]; ok {
		status = 302
	}

	return Result{Status: Available, ResponseStatus: status, ResponseHeaders: responseHeaders, Content: content}, nil
}

// ShouldHandle reports whether resource should be routed through the CGI
// bridge: either its extension is declared CGI-handled, or walking its
// path components from document_root reaches a regular file before the
// path is exhausted (a PATH_INFO-style request against a script that
// itself has no recognized extension).
func (b *Bridge) ShouldHandle(resource string, extensions []string) bool {
	ext := strings.TrimPrefix(filepath.Ext(resource), ".")
	for _, e := range extensions {
		if e == ext {
			return true
		}
	}

	segments := strings.Split(resource, "/")
	path := b.cfg.DocumentRoot
	for _, seg := range segments {
		if isFile(path) {
			return true
		}
		path = filepath.Join(path, seg)
	}
	return false
}

// resolveScriptPath walks resource's path segments from document_root,
// stopping at the first segment that is a file on disk, exactly like
// cgi.rs's while-loop over Path::is_file.
func resolveScriptPath(documentRoot, resource string) (scriptFilename, scriptName, pathInfo string) {
	segments := strings.Split(resource, "/")
	scriptFilename = documentRoot
	pos := 1
	for pos < len(segments) && !isFile(scriptFilename) {
		scriptFilename = filepath.Join(scriptFilename, segments[pos])
		pos++
	}
	scriptName = segments[pos-1]
	pathInfo = "/" + strings.Join(segments[pos:], "/")
	if len(segments) == pos {
		pathInfo = ""
	}
	return scriptFilename, scriptName, pathInfo
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func httpsFlag(https bool) string {
	if https {
		return "1"
	}
	return ""
}
