package server

// reloadClient is served at ClientPath and injected into every HTML page.
// It refreshes stylesheets in place for css messages, reloads the page for
// reload messages and shows failures for error messages.
const reloadClient = `(function () {
  "use strict";
  var scheme = location.protocol === "https:" ? "wss://" : "ws://";
  var url = scheme + location.host + "/__sitepipe/ws";
  var retries = 0;

  function refreshStyles(paths) {
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    var stamp = Date.now();
    links.forEach(function (link) {
      var href = link.getAttribute("href");
      if (!href) { return; }
      var bare = href.split("?")[0];
      var hit = paths.length === 0 || paths.some(function (p) {
        return bare === p || bare.endsWith(p);
      });
      if (hit) {
        link.setAttribute("href", bare + "?v=" + stamp);
      }
    });
  }

  function showError(message) {
    var box = document.getElementById("sitepipe-error-overlay");
    if (!box) {
      box = document.createElement("div");
      box.id = "sitepipe-error-overlay";
      box.style.cssText = "position:fixed;left:0;right:0;bottom:0;max-height:50%;overflow:auto;" +
        "background:#2b0000;color:#ffdede;font:13px monospace;padding:12px;z-index:2147483647;white-space:pre-wrap";
      document.body.appendChild(box);
    }
    box.textContent = message;
  }

  function connect() {
    var ws = new WebSocket(url);
    ws.onopen = function () {
      if (retries > 0) { location.reload(); }
      retries = 0;
    };
    ws.onmessage = function (event) {
      var msg;
      try { msg = JSON.parse(event.data); } catch (e) { return; }
      if (msg.type === "css") {
        refreshStyles(msg.paths || []);
      } else if (msg.type === "reload") {
        location.reload();
      } else if (msg.type === "error") {
        showError(msg.error);
      }
    };
    ws.onclose = function () {
      retries++;
      setTimeout(connect, Math.min(1000 * retries, 5000));
    };
  }

  connect();
})();
`
