package reportpdf

// DefaultTemplate renders a report.Document view. Header rows repeat on every
// page through the table thead.
const DefaultTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ title }}</title>
<style>
@page { size: {{ page.Size }}{% if page.Landscape %} landscape{% endif %}; margin: {{ page.Top }}pt {{ page.Right }}pt {{ page.Bottom }}pt {{ page.Left }}pt; }
body { font-family: Helvetica, Arial, sans-serif; margin: 0; }
h1 { font-size: 18pt; font-weight: bold; text-align: center; margin: 0 0 6pt 0; }
p.generated { font-size: 10pt; margin: 0; }
table.report { border-collapse: collapse; table-layout: fixed; width: 100%; }
table.report thead { display: table-header-group; }
table.report tr { page-break-inside: avoid; }
table.report th { background: {{ style.HeaderBackground }}; color: {{ style.HeaderText }}; font-weight: bold; font-size: {{ style.HeaderFontSize }}pt; line-height: {{ style.Leading }}pt; text-align: center; vertical-align: middle; }
table.report th, table.report td { border: {{ style.GridWidth }}pt solid {{ style.GridColor }}; padding: 1pt 2pt; overflow-wrap: anywhere; }
table.report td { font-size: {{ style.BodyFontSize }}pt; text-align: center; vertical-align: middle; }
table.report td.annotation { text-align: left; vertical-align: top; }
</style>
</head>
<body>
{% for block in blocks %}{% if block.Kind == "title" %}<h1>{{ block.Text }}</h1>
{% elif block.Kind == "paragraph" %}<p class="generated">{{ block.Text }}</p>
{% elif block.Kind == "spacer" %}<div class="spacer" style="height: {{ block.Height }}pt"></div>
{% elif block.Kind == "table" %}<table class="report">
<colgroup>{% for col in block.Table.Columns %}<col{% if col.Width %} style="width: {{ col.Width }}pt"{% endif %}>{% endfor %}</colgroup>
<thead><tr>{% for col in block.Table.Columns %}<th>{{ col.Label }}</th>{% endfor %}</tr></thead>
<tbody>
{% for row in block.Table.Rows %}<tr class="{{ row.Class }}">{% for cell in row.Cells %}<td{% if cell.Span > 1 %} colspan="{{ cell.Span }}"{% endif %}{% if row.Annotation %} class="annotation"{% endif %}>{% if cell.Label %}<b>{{ cell.Label }}:</b>{% if cell.Break %}<br/>{% else %} {% endif %}{% endif %}{{ cell.Text }}{% for line in cell.Lines %}{% if not forloop.First %}<br/>{% endif %}{{ line }}{% endfor %}</td>{% endfor %}</tr>
{% endfor %}</tbody>
</table>
{% endif %}{% endfor %}
</body>
</html>
`
