package scanner

// standardLibrary holds module names shipped with the Python runtime.
// Membership is an exact match on the top-level name.
var standardLibrary = map[string]struct{}{}

func init() {
	for _, name := range []string{
		"__future__", "_thread", "abc", "aifc", "argparse", "array", "ast",
		"asynchat", "asyncio", "asyncore", "atexit", "audioop", "base64",
		"bdb", "binascii", "bisect", "builtins", "bz2", "cProfile",
		"calendar", "cgi", "cgitb", "chunk", "cmath", "cmd", "code",
		"codecs", "codeop", "collections", "colorsys", "compileall",
		"concurrent", "configparser", "contextlib", "contextvars", "copy",
		"copyreg", "crypt", "csv", "ctypes", "curses", "dataclasses",
		"datetime", "dbm", "decimal", "difflib", "dis", "distutils",
		"doctest", "email", "encodings", "ensurepip", "enum", "errno",
		"faulthandler", "fcntl", "filecmp", "fileinput", "fnmatch",
		"fractions", "ftplib", "functools", "gc", "getopt", "getpass",
		"gettext", "glob", "graphlib", "grp", "gzip", "hashlib", "heapq",
		"hmac", "html", "http", "idlelib", "imaplib", "imghdr", "imp",
		"importlib", "inspect", "io", "ipaddress", "itertools", "json",
		"keyword", "lib2to3", "linecache", "locale", "logging", "lzma",
		"mailbox", "mailcap", "marshal", "math", "mimetypes", "mmap",
		"modulefinder", "msilib", "msvcrt", "multiprocessing", "netrc",
		"nis", "nntplib", "ntpath", "numbers", "opcode", "operator",
		"optparse", "os", "os.path", "ossaudiodev", "pathlib", "pdb",
		"pickle", "pickletools", "pipes", "pkgutil", "platform", "plistlib",
		"poplib", "posix", "posixpath", "pprint", "profile", "pstats",
		"pty", "pwd", "py_compile", "pyclbr", "pydoc", "queue", "quopri",
		"random", "re", "readline", "reprlib", "resource", "rlcompleter",
		"runpy", "sched", "secrets", "select", "selectors", "shelve",
		"shlex", "shutil", "signal", "site", "smtpd", "smtplib", "sndhdr",
		"socket", "socketserver", "spwd", "sqlite3", "sre_compile",
		"sre_constants", "sre_parse", "ssl", "stat", "statistics",
		"string", "stringprep", "struct", "subprocess", "sunau", "symbol",
		"symtable", "sys", "sysconfig", "syslog", "tabnanny", "tarfile",
		"telnetlib", "tempfile", "termios", "test", "textwrap", "threading",
		"time", "timeit", "tkinter", "token", "tokenize", "tomllib",
		"trace", "traceback", "tracemalloc", "tty", "turtle", "types",
		"typing", "unicodedata", "unittest", "urllib", "uu", "uuid",
		"venv", "warnings", "wave", "weakref", "webbrowser", "winreg",
		"winsound", "wsgiref", "xdrlib", "xml", "xml.dom",
		"xml.etree.ElementTree", "xml.parsers", "xml.sax", "xmlrpc",
		"zipapp", "zipfile", "zipimport", "zlib", "zoneinfo",
	} {
		standardLibrary[name] = struct{}{}
	}
}

// IsStandardLibrary reports whether name is a standard-library module.
func IsStandardLibrary(name string) bool {
	_, ok := standardLibrary[name]
	return ok
}

// packageNames maps import names to the package that provides them.
var packageNames = map[string]string{
	"docx":    "python-docx",
	"dotenv":  "python-dotenv",
	"cv2":     "opencv-python",
	"PIL":     "pillow",
	"yaml":    "pyyaml",
	"sklearn": "scikit-learn",
	"bs4":     "beautifulsoup4",
}

// PackageFor returns the installable package name for an import name.
func PackageFor(importName string) string {
	if pkg, ok := packageNames[importName]; ok {
		return pkg
	}
	return importName
}
