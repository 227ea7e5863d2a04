package copyright

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"panel/pkg/version"
)

var (
	// 颜色组合
	titleColor   = color.New(color.FgHiCyan, color.Bold)
	versionColor = color.New(color.FgHiGreen)
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	defaultColor = color.New(color.FgWhite)
)

// Upstream 上游服务信息
type Upstream struct {
	Name   string
	Target string
}

// SystemStatus 启动时展示的系统状态
type SystemStatus struct {
	Addr         string
	Mode         string
	SessionStore string
	RedisStatus  bool
	CacheTTL     string
	Upstreams    []Upstream
}

// PrintCopyright 打印启动信息
func PrintCopyright(status SystemStatus) {
	printLogo(os.Stdout)
	printFrame(os.Stdout, status)
}

func printFrame(w io.Writer, status SystemStatus) {
	titleColor.Fprintln(w, "| System Information")
	defaultColor.Fprintln(w, "│")

	info := version.GetVersionInfo()
	defaultColor.Fprint(w, "│ Version    : ")
	versionColor.Fprint(w, info.Version)
	if short := info.Short(); short != "" {
		defaultColor.Fprintf(w, " (%s)", short)
	}
	defaultColor.Fprintf(w, " built at %s\n", info.BuildTime)

	defaultColor.Fprintf(w, "│ Listen     : %s (%s)\n", status.Addr, status.Mode)
	defaultColor.Fprintf(w, "│ Cache TTL  : %s\n", status.CacheTTL)
	defaultColor.Fprintf(w, "│ Sessions   : %s", status.SessionStore)
	if status.SessionStore == "redis" {
		defaultColor.Fprint(w, " ")
		printStatus(w, status.RedisStatus)
	}
	fmt.Fprintln(w)

	defaultColor.Fprintln(w, "│")
	defaultColor.Fprintln(w, "│ Upstream Services")
	if len(status.Upstreams) == 0 {
		defaultColor.Fprint(w, "│ ")
		warningColor.Fprintln(w, "No upstream configured")
	} else {
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Service", "Target"})
		table.SetBorder(false)
		table.SetColumnSeparator("|")
		for _, u := range status.Upstreams {
			table.Append([]string{u.Name, u.Target})
		}
		table.Render()
	}
	fmt.Fprintln(w)
}

func printStatus(w io.Writer, ok bool) {
	if ok {
		successColor.Fprint(w, "Connected")
		return
	}
	warningColor.Fprint(w, "Disconnected")
}

func printLogo(w io.Writer) {
	logo := `
  __      __              .__                   __   
 /  \    /  \_____  ___.__|  |__   ____  _______/  |_ 
 \   \/\/   /\__  \<   |  |  |  \ /  _ \/  ___/\   __\
  \        /  / __ \\___  |   Y  (  <_> )___ \  |  |  
   \__/\  /  (____  / ____|___|  /\____/____  > |__|  
        \/        \/\/         \/           \/        
`
	for _, line := range strings.Split(logo, "\n") {
		titleColor.Fprintln(w, line)
	}
}
