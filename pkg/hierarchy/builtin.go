package hierarchy

// builtinParents is the seeded built-in exception hierarchy, parent per type.
// Seeded once at resolver construction; user-defined nodes are layered on top.
var builtinParents = map[string][]string{
	"BaseException":             nil,
	"SystemExit":                {"BaseException"},
	"KeyboardInterrupt":         {"BaseException"},
	"GeneratorExit":             {"BaseException"},
	"BaseExceptionGroup":        {"BaseException"},
	"Exception":                 {"BaseException"},
	"ExceptionGroup":            {"Exception", "BaseExceptionGroup"},
	"ArithmeticError":           {"Exception"},
	"ZeroDivisionError":         {"ArithmeticError"},
	"OverflowError":             {"ArithmeticError"},
	"FloatingPointError":        {"ArithmeticError"},
	"AssertionError":            {"Exception"},
	"AttributeError":            {"Exception"},
	"BufferError":               {"Exception"},
	"EOFError":                  {"Exception"},
	"ImportError":               {"Exception"},
	"ModuleNotFoundError":       {"ImportError"},
	"LookupError":               {"Exception"},
	"IndexError":                {"LookupError"},
	"KeyError":                  {"LookupError"},
	"MemoryError":               {"Exception"},
	"NameError":                 {"Exception"},
	"UnboundLocalError":         {"NameError"},
	"OSError":                   {"Exception"},
	"IOError":                   {"OSError"},
	"EnvironmentError":          {"OSError"},
	"BlockingIOError":           {"OSError"},
	"ChildProcessError":         {"OSError"},
	"ConnectionError":           {"OSError"},
	"BrokenPipeError":           {"ConnectionError"},
	"ConnectionAbortedError":    {"ConnectionError"},
	"ConnectionRefusedError":    {"ConnectionError"},
	"ConnectionResetError":      {"ConnectionError"},
	"FileExistsError":           {"OSError"},
	"FileNotFoundError":         {"OSError"},
	"InterruptedError":          {"OSError"},
	"IsADirectoryError":         {"OSError"},
	"NotADirectoryError":        {"OSError"},
	"PermissionError":           {"OSError"},
	"ProcessLookupError":        {"OSError"},
	"TimeoutError":              {"OSError"},
	"ReferenceError":            {"Exception"},
	"RuntimeError":              {"Exception"},
	"NotImplementedError":       {"RuntimeError"},
	"RecursionError":            {"RuntimeError"},
	"StopIteration":             {"Exception"},
	"StopAsyncIteration":        {"Exception"},
	"SyntaxError":               {"Exception"},
	"IndentationError":          {"SyntaxError"},
	"TabError":                  {"IndentationError"},
	"SystemError":               {"Exception"},
	"TypeError":                 {"Exception"},
	"ValueError":                {"Exception"},
	"UnicodeError":              {"ValueError"},
	"UnicodeDecodeError":        {"UnicodeError"},
	"UnicodeEncodeError":        {"UnicodeError"},
	"UnicodeTranslateError":     {"UnicodeError"},
	"Warning":                   {"Exception"},
	"BytesWarning":              {"Warning"},
	"DeprecationWarning":        {"Warning"},
	"EncodingWarning":           {"Warning"},
	"FutureWarning":             {"Warning"},
	"ImportWarning":             {"Warning"},
	"PendingDeprecationWarning": {"Warning"},
	"ResourceWarning":           {"Warning"},
	"RuntimeWarning":            {"Warning"},
	"SyntaxWarning":             {"Warning"},
	"UnicodeWarning":            {"Warning"},
	"UserWarning":               {"Warning"},
}
