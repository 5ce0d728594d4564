package feature

// builtin is a command or environment available without a definition in the
// workspace.
type builtin struct {
	name   string
	detail string
}

var builtinCommands = []builtin{
	{"documentclass", "Set the document class"},
	{"usepackage", "Load a package"},
	{"begin", "Open an environment"},
	{"end", "Close an environment"},
	{"part", "Sectioning, level -1"},
	{"chapter", "Sectioning, level 0"},
	{"section", "Sectioning, level 1"},
	{"subsection", "Sectioning, level 2"},
	{"subsubsection", "Sectioning, level 3"},
	{"paragraph", "Sectioning, level 4"},
	{"subparagraph", "Sectioning, level 5"},
	{"label", "Define a label"},
	{"ref", "Reference a label"},
	{"eqref", "Reference an equation"},
	{"pageref", "Reference the page of a label"},
	{"autoref", "Reference a label with its type"},
	{"cref", "Clever reference"},
	{"Cref", "Clever reference, capitalized"},
	{"cite", "Cite a bibliography entry"},
	{"citep", "Parenthetical citation"},
	{"citet", "Textual citation"},
	{"parencite", "Parenthetical citation"},
	{"textcite", "Textual citation"},
	{"nocite", "Add entries without citing"},
	{"bibliography", "Use bibliography files"},
	{"bibliographystyle", "Set the bibliography style"},
	{"addbibresource", "Add a bibliography resource"},
	{"printbibliography", "Print the bibliography"},
	{"input", "Insert a file"},
	{"include", "Insert a file on a new page"},
	{"includeonly", "Restrict included files"},
	{"import", "Insert a file from a directory"},
	{"subfile", "Insert a subfile"},
	{"includegraphics", "Insert an image"},
	{"caption", "Caption of a float"},
	{"item", "List item"},
	{"textbf", "Bold text"},
	{"textit", "Italic text"},
	{"texttt", "Typewriter text"},
	{"emph", "Emphasized text"},
	{"underline", "Underlined text"},
	{"footnote", "Footnote"},
	{"url", "URL"},
	{"href", "Hyperlink"},
	{"newcommand", "Define a command"},
	{"renewcommand", "Redefine a command"},
	{"providecommand", "Define a command if undefined"},
	{"newenvironment", "Define an environment"},
	{"renewenvironment", "Redefine an environment"},
	{"newtheorem", "Define a theorem environment"},
	{"maketitle", "Typeset the title"},
	{"title", "Document title"},
	{"author", "Document author"},
	{"date", "Document date"},
	{"tableofcontents", "Table of contents"},
	{"newpage", "Start a new page"},
	{"clearpage", "Flush floats and start a new page"},
	{"centering", "Center the following content"},
	{"hline", "Horizontal rule in a table"},
	{"vspace", "Vertical space"},
	{"hspace", "Horizontal space"},
	{"frac", "Fraction"},
	{"sqrt", "Square root"},
	{"sum", "Sum operator"},
	{"int", "Integral operator"},
	{"prod", "Product operator"},
	{"lim", "Limit"},
	{"infty", "Infinity"},
	{"alpha", "Greek letter"},
	{"beta", "Greek letter"},
	{"gamma", "Greek letter"},
	{"delta", "Greek letter"},
	{"epsilon", "Greek letter"},
	{"lambda", "Greek letter"},
	{"mu", "Greek letter"},
	{"pi", "Greek letter"},
	{"sigma", "Greek letter"},
	{"mathbb", "Blackboard bold"},
	{"mathcal", "Calligraphic letters"},
	{"mathrm", "Roman letters in math"},
	{"left", "Sized left delimiter"},
	{"right", "Sized right delimiter"},
	{"verb", "Inline verbatim"},
}

var builtinEnvironments = []builtin{
	{"document", "Document body"},
	{"abstract", "Abstract"},
	{"itemize", "Bulleted list"},
	{"enumerate", "Numbered list"},
	{"description", "Description list"},
	{"figure", "Floating figure"},
	{"table", "Floating table"},
	{"tabular", "Table body"},
	{"center", "Centered content"},
	{"flushleft", "Left aligned content"},
	{"flushright", "Right aligned content"},
	{"minipage", "Box with paragraphs"},
	{"quote", "Short quotation"},
	{"quotation", "Long quotation"},
	{"verbatim", "Verbatim text"},
	{"lstlisting", "Source listing"},
	{"minted", "Highlighted source listing"},
	{"equation", "Numbered equation"},
	{"equation*", "Unnumbered equation"},
	{"align", "Aligned equations"},
	{"align*", "Unnumbered aligned equations"},
	{"gather", "Gathered equations"},
	{"multline", "Multi-line equation"},
	{"cases", "Case distinction"},
	{"matrix", "Matrix"},
	{"pmatrix", "Matrix in parentheses"},
	{"bmatrix", "Matrix in brackets"},
	{"proof", "Proof"},
	{"thebibliography", "Manual bibliography"},
	{"frame", "Beamer frame"},
	{"tikzpicture", "TikZ picture"},
}

func lookupBuiltin(list []builtin, name string) (builtin, bool) {
	for _, b := range list {
		if b.name == name {
			return b, true
		}
	}
	return builtin{}, false
}
